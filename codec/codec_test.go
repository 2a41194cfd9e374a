package codec

import (
	"testing"
)

type schemaDoc struct {
	Borders map[string][]float32 `json:"borders"`
	NanMode map[string]string    `json:"nan_mode"`
}

func sampleDoc() schemaDoc {
	return schemaDoc{
		Borders: map[string][]float32{
			"0": {0.5, 1.5, 2.5},
			"3": {-1, 0, 1},
		},
		NanMode: map[string]string{"0": "Max", "3": "Forbidden"},
	}
}

func TestRoundTrip(t *testing.T) {
	codecs := []Codec{
		JSON{},
		GoJSON{},
		Zstd{Inner: JSON{}},
		Zstd{Inner: GoJSON{}},
		LZ4{Inner: JSON{}},
	}

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			in := sampleDoc()
			data, err := c.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var out schemaDoc
			if err := c.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}

			if len(out.Borders["0"]) != 3 || out.Borders["0"][1] != 1.5 {
				t.Errorf("borders mangled: %v", out.Borders)
			}
			if out.NanMode["3"] != "Forbidden" {
				t.Errorf("nan modes mangled: %v", out.NanMode)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json", "zstd+json", "lz4+json"} {
		c, ok := ByName(name)
		if !ok {
			t.Fatalf("ByName(%q) not found", name)
		}
		if c.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, c.Name())
		}
	}

	if _, ok := ByName("msgpack"); ok {
		t.Error("unexpected codec for unknown name")
	}
}
