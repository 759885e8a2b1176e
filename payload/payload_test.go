package payload

import (
	"testing"

	"github.com/hugr-lab/datatable-go/engine"
)

func sampleResponse(format engine.OutputFormat) *engine.Response {
	return &engine.Response{
		Format:   format,
		Echo:     3,
		Total:    2,
		Filtered: 1,
		Data: []engine.Row{{
			Cells: []engine.Cell{{Key: "0", Value: int64(1)}, {Key: "1", Value: "Bob"}},
		}},
		Additional: "note",
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, f := range []Format{JSON, MsgPack} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := Encode(sampleResponse(engine.Modern), f)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			var m map[string]any
			if err := Decode(data, f, &m); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			rows, ok := m["data"].([]any)
			if !ok || len(rows) != 1 {
				t.Fatalf("unexpected data %#v", m["data"])
			}
			row, ok := rows[0].([]any)
			if !ok || len(row) != 2 || row[1] != "Bob" {
				t.Errorf("unexpected row %#v", rows[0])
			}
			if m["additional"] != "note" {
				t.Errorf("unexpected additional %#v", m["additional"])
			}
			if _, ok := m["aaData"]; ok {
				t.Error("modern payload must not contain aaData")
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Encode(nil, JSON); err == nil {
		t.Error("expected error for nil response")
	}
	if _, err := Encode(sampleResponse(engine.Legacy), Format(9)); err == nil {
		t.Error("expected error for unknown format")
	}
	var m map[string]any
	if err := Decode(nil, JSON, &m); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   Format
	}{
		{"", JSON},
		{"application/json", JSON},
		{"text/html, application/msgpack;q=0.9", MsgPack},
		{"application/x-msgpack", MsgPack},
		{"*/*", JSON},
	}
	for _, tt := range tests {
		if got := Negotiate(tt.accept); got != tt.want {
			t.Errorf("Negotiate(%q): expected %s, got %s", tt.accept, tt.want, got)
		}
	}
	if MsgPack.ContentType() != ContentTypeMsgPack || JSON.ContentType() != ContentTypeJSON {
		t.Error("unexpected content types")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	c, err := NewCompressor()
	if err != nil {
		t.Fatalf("NewCompressor failed: %v", err)
	}
	defer c.Close()

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("NewDecompressor failed: %v", err)
	}
	defer d.Close()

	data, err := Encode(sampleResponse(engine.Legacy), JSON)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	out, err := d.Decompress(c.Compress(data))
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("round trip mismatch:\n%s\n%s", data, out)
	}

	if len(c.Compress(nil)) != 0 {
		t.Error("empty input must compress to empty output")
	}
	if _, err := d.Decompress([]byte("not zstd")); err == nil {
		t.Error("expected error for invalid frame")
	}
}

func TestAcceptsZstd(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"gzip, zstd", true},
		{"ZSTD;q=0.5", true},
		{"zstd;q=0", false},
		{"gzip, br", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AcceptsZstd(tt.header); got != tt.want {
			t.Errorf("AcceptsZstd(%q): expected %v, got %v", tt.header, tt.want, got)
		}
	}
}
