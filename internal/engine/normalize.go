package engine

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// maxSafeInteger is the largest integer a float64 can represent exactly.
// Integers beyond it are rendered as decimal strings so that the archive
// survives JSON round-trips through runtimes that only have doubles.
const maxSafeInteger = 1<<53 - 1

// Normalize converts a value into its canonical archive form:
// times become RFC 3339 UTC strings, integers beyond the float64-safe
// range become decimal strings, binary becomes base64, and nested
// containers are normalized recursively. The function is idempotent, so
// a value that already went through normalization (e.g. after being
// decoded from an archive) normalizes to itself. Export and checksum
// recomputation both go through here; see Checksum.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case int:
		return normalizeInt64(int64(val))
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return normalizeInt64(val)
	case uint:
		return normalizeUint64(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return normalizeUint64(val)
	case float32:
		return float64(val)
	case Row:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case []Row:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeInt64(v int64) any {
	if v > maxSafeInteger || v < -maxSafeInteger {
		return strconv.FormatInt(v, 10)
	}
	return v
}

func normalizeUint64(v uint64) any {
	if v > maxSafeInteger {
		return strconv.FormatUint(v, 10)
	}
	return int64(v)
}

// NormalizeRow returns a normalized copy of the row.
func NormalizeRow(r Row) Row {
	return Row(normalizeMap(r))
}

// NormalizeDataset returns a normalized copy of every row in the dataset.
func NormalizeDataset(data Dataset) Dataset {
	out := make(Dataset, len(data))
	for key, rows := range data {
		normalized := make([]Row, len(rows))
		for i, row := range rows {
			normalized[i] = NormalizeRow(row)
		}
		out[key] = normalized
	}
	return out
}

// CanonicalMarshal renders a value as deterministic JSON: object keys are
// sorted lexicographically at every level, values are normalized first.
// Two structurally equal values always produce identical bytes, regardless
// of map insertion order.
func CanonicalMarshal(v any) ([]byte, error) {
	var buf []byte
	buf, err := appendCanonical(buf, Normalize(v))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	case []any:
		buf = append(buf, '[')
		var err error
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf, err = appendCanonical(buf, item)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("cannot canonicalize non-finite number")
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	default:
		// Normalized scalars: nil, bool, int64, json.Number, string.
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
}

// Checksum computes the content hash of an archive's payload: sha-256 over
// the canonical JSON of {scope, data}, rendered as lowercase hex. The same
// function backs export-side hashing and import-side recomputation so the
// two can never drift apart.
func Checksum(scope Scope, data Dataset) (string, error) {
	payload := map[string]any{
		"scope": string(scope),
		"data":  datasetToAny(data),
	}
	canonical, err := CanonicalMarshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalizing archive payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func datasetToAny(data Dataset) map[string]any {
	out := make(map[string]any, len(data))
	for key, rows := range data {
		items := make([]any, len(rows))
		for i, row := range rows {
			items[i] = map[string]any(row)
		}
		out[key] = items
	}
	return out
}
