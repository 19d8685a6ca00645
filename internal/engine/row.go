package engine

// Row is an opaque key-value record read from or written to a single table.
// Field names use the archive's camelCase form; adapters translate to
// physical column names.
type Row map[string]any

// Dataset maps a data key (e.g. "posts", "postTags") to its exported rows.
type Dataset map[string][]Row
