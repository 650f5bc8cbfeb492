package replay

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encoder writes one record at a time. Close flushes the stream.
type Encoder interface {
	Encode(v any) error
	Close() error
}

// NewEncoder writes JSON lines or a stream of YAML documents. Both use the
// JSON field names.
func NewEncoder(w io.Writer, format string) (Encoder, error) {
	switch format {
	case FormatJSON:
		return jsonEncoder{json.NewEncoder(w)}, nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return yamlEncoder{enc}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q, want %s or %s", format, FormatJSON, FormatYAML)
	}
}

type jsonEncoder struct{ *json.Encoder }

func (jsonEncoder) Close() error { return nil }

type yamlEncoder struct{ enc *yaml.Encoder }

func (y yamlEncoder) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return y.enc.Encode(doc)
}

func (y yamlEncoder) Close() error { return y.enc.Close() }
