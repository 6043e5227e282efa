package codec

import "gopkg.in/yaml.v3"

// YAML is the built-in yaml FormatCodec, a human-editable alternative
// to JSON for hand-inspected persistence files.
type YAML struct{}

func (YAML) Name() string         { return "yaml" }
func (YAML) Extensions() []string { return []string{".yaml", ".yml"} }

func (YAML) Encode(data map[string]map[string]any) (string, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return "", &Error{Codec: "yaml", Err: err}
	}
	return string(b), nil
}

func (YAML) Decode(raw string) (map[string]map[string]any, error) {
	if raw == "" {
		return map[string]map[string]any{}, nil
	}
	var out map[string]map[string]any
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &Error{Codec: "yaml", Err: err}
	}
	return out, nil
}

var _ FormatCodec = YAML{}
