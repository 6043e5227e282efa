// Package msgpack provides an optional binary FormatCodec, registered as
// a plugin rather than a built-in, exercising the plugin registry's
// codec-merge path alongside the mandated json/yaml
// built-ins.
package msgpack

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/loomdb/loom/plugin"
)

// Codec implements plugin.FormatCodec using msgpack encoding.
type Codec struct{}

func (Codec) Name() string         { return "msgpack" }
func (Codec) Extensions() []string { return []string{".msgpack"} }

func (Codec) Encode(data map[string]map[string]any) (string, error) {
	b, err := msgpack.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (Codec) Decode(raw string) (map[string]map[string]any, error) {
	if raw == "" {
		return map[string]map[string]any{}, nil
	}
	var out map[string]map[string]any
	if err := msgpack.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Plugin contributes the msgpack Codec to a database's plugin registry.
type Plugin struct {
	plugin.Base
}

func (Plugin) Name() string                       { return "msgpack-codec" }
func (Plugin) Codecs() []plugin.FormatCodec        { return []plugin.FormatCodec{Codec{}} }
func (Plugin) Initialize(ctx context.Context) error { return nil }

var _ plugin.Plugin = Plugin{}
