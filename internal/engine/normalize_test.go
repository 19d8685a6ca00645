package engine

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 500000000, time.FixedZone("JST", 9*3600))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "hello", want: "hello"},
		{name: "bool", in: true, want: true},
		{name: "small int", in: 42, want: int64(42)},
		{name: "negative int", in: -7, want: int64(-7)},
		{name: "safe boundary", in: int64(1<<53 - 1), want: int64(1<<53 - 1)},
		{name: "beyond safe range", in: int64(1 << 53), want: "9007199254740992"},
		{name: "beyond negative safe range", in: int64(-(1 << 53)), want: "-9007199254740992"},
		{name: "large uint64", in: uint64(1<<63 + 5), want: "9223372036854775813"},
		{name: "float32", in: float32(1.5), want: float64(1.5)},
		{name: "time to utc rfc3339", in: ts, want: "2024-03-01T01:30:00.5Z"},
		{name: "bytes to base64", in: []byte{0x01, 0x02, 0xff}, want: "AQL/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestNormalize_Nested(t *testing.T) {
	in := Row{
		"id":      1,
		"payload": map[string]any{"when": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		"list":    []any{int64(1 << 60), "x"},
	}

	got := NormalizeRow(in)

	payload, ok := got["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload normalized to %T, want map", got["payload"])
	}
	if payload["when"] != "2024-01-01T00:00:00Z" {
		t.Errorf("nested time = %v, want RFC 3339 string", payload["when"])
	}

	list, ok := got["list"].([]any)
	if !ok {
		t.Fatalf("list normalized to %T, want slice", got["list"])
	}
	if list[0] != "1152921504606846976" {
		t.Errorf("nested big int = %v, want decimal string", list[0])
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := Row{
		"id":   int64(1 << 60),
		"when": time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		"blob": []byte("abc"),
		"tags": []any{1, "two"},
	}

	once := NormalizeRow(in)
	twice := NormalizeRow(once)

	a, err := CanonicalMarshal(map[string]any(once))
	if err != nil {
		t.Fatalf("CanonicalMarshal() error = %v", err)
	}
	b, err := CanonicalMarshal(map[string]any(twice))
	if err != nil {
		t.Fatalf("CanonicalMarshal() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("normalization is not idempotent:\nonce:  %s\ntwice: %s", a, b)
	}
}

func TestCanonicalMarshal_KeyOrder(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": 1, "x": 2}}
	b := map[string]any{"c": map[string]any{"x": 2, "y": 1}, "a": 1, "b": 2}

	ja, err := CanonicalMarshal(a)
	if err != nil {
		t.Fatalf("CanonicalMarshal() error = %v", err)
	}
	jb, err := CanonicalMarshal(b)
	if err != nil {
		t.Fatalf("CanonicalMarshal() error = %v", err)
	}

	if !bytes.Equal(ja, jb) {
		t.Errorf("same structure produced different canonical JSON:\n%s\n%s", ja, jb)
	}
	want := `{"a":1,"b":2,"c":{"x":2,"y":1}}`
	if string(ja) != want {
		t.Errorf("canonical JSON = %s, want %s", ja, want)
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	data1 := Dataset{
		"users": {
			{"uid": 1, "name": "alice", "createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	data2 := Dataset{
		"users": {
			{"createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "name": "alice", "uid": 1},
		},
	}

	c1, err := Checksum(ScopeCore, data1)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	c2, err := Checksum(ScopeCore, data2)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}

	if c1 != c2 {
		t.Errorf("key order changed the checksum: %s vs %s", c1, c2)
	}
	if len(c1) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(c1))
	}
}

func TestChecksum_SensitiveToContent(t *testing.T) {
	base := Dataset{"users": {{"uid": 1, "name": "alice"}}}
	changedValue := Dataset{"users": {{"uid": 1, "name": "bob"}}}

	c1, err := Checksum(ScopeCore, base)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	c2, err := Checksum(ScopeCore, changedValue)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	c3, err := Checksum(ScopeContent, base)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}

	if c1 == c2 {
		t.Error("changing a value did not change the checksum")
	}
	if c1 == c3 {
		t.Error("changing the scope did not change the checksum")
	}
}

func TestChecksum_SurvivesJSONRoundTrip(t *testing.T) {
	data := Dataset{
		"users": {
			{"uid": 1, "big": int64(1 << 60), "when": time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), "score": 99.5},
		},
	}
	data = NormalizeDataset(data)

	before, err := Checksum(ScopeCore, data)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}

	// Serialize and decode the way ParseArchive does, with UseNumber.
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Dataset
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	after, err := Checksum(ScopeCore, decoded)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}

	if before != after {
		t.Errorf("checksum changed across JSON round-trip: %s vs %s", before, after)
	}
}
