package codec

import "encoding/json"

// JSON is the built-in json FormatCodec every persisted collection can
// use without registering a plugin.
type JSON struct{}

func (JSON) Name() string         { return "json" }
func (JSON) Extensions() []string { return []string{".json"} }

func (JSON) Encode(data map[string]map[string]any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", &Error{Codec: "json", Err: err}
	}
	return string(b), nil
}

func (JSON) Decode(raw string) (map[string]map[string]any, error) {
	if raw == "" {
		return map[string]map[string]any{}, nil
	}
	var out map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &Error{Codec: "json", Err: err}
	}
	return out, nil
}

var _ FormatCodec = JSON{}
