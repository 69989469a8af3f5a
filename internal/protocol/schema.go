package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "avocado://schemas/"

// inboundSchemas maps an inbound event to its payload schema. Events that
// carry no payload are listed with an empty file name.
var inboundSchemas = map[string]string{
	EvJoin:         "join.schema.json",
	EvMove:         "move.schema.json",
	EvClick:        "",
	EvRename:       "rename.schema.json",
	EvChat:         "chat.schema.json",
	EvGrow:         "",
	EvMine:         "",
	EvCollectItem:  "collect-item.schema.json",
	EvSpawnRequest: "spawn-request.schema.json",
}

// Validator checks inbound payload shapes before they reach the world loop.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	ents, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{schemas: map[string]*jsonschema.Schema{}}
	for ev, file := range inboundSchemas {
		if file == "" {
			continue
		}
		s, err := c.Compile(schemaBaseURL + file)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}
		v.schemas[ev] = s
	}
	return v, nil
}

// IsInbound reports whether ev names a client -> server event.
func IsInbound(ev string) bool {
	_, ok := inboundSchemas[ev]
	return ok
}

// Validate returns an error when the envelope names an unknown event or its
// payload does not match the event schema.
func (v *Validator) Validate(env Envelope) error {
	if !IsInbound(env.Event) {
		return fmt.Errorf("unknown event %q", env.Event)
	}
	s := v.schemas[env.Event]
	if s == nil {
		return nil
	}
	var doc any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &doc); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}
	return nil
}
