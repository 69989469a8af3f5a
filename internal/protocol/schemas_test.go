package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"avocado.town/internal/protocol"
)

func TestSchemas_ValidateOutboundSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}
	validate := func(s *jsonschema.Schema, b []byte) {
		t.Helper()
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	envSchema := compile("envelope.schema.json")
	snapSchema := compile("snapshot.schema.json")

	snap := protocol.SnapshotMsg{
		SelfID: "c1",
		Sessions: map[string]protocol.PlayerView{
			"c1": {ID: "c1", Identity: "abc", X: 12.5, Y: 88, Color: "#a1b2c3", Scale: 1, Clicks: 3, TodayClicks: 3},
		},
		StageColor:  "#5d4037",
		GlobalTotal: 42,
		ShardPool:   100,
		ActiveItems: []protocol.ItemView{{ID: "i1", Kind: "coin", X: 50, Y: 50}},
		TodayClicks: 3,
		DailyCap:    100,
	}
	b, err := protocol.Encode(protocol.EvSnapshot, snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	validate(envSchema, b)

	env, err := protocol.DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	validate(snapSchema, env.Data)

	for _, ev := range []string{protocol.EvPoolDepleted, protocol.EvQuotaExceeded, protocol.EvDailyReset} {
		b, err := protocol.Encode(ev, nil)
		if err != nil {
			t.Fatalf("encode %s: %v", ev, err)
		}
		validate(envSchema, b)
		if string(b) != `{"event":"`+ev+`"}` {
			t.Fatalf("empty payload frame=%s", b)
		}
	}
}

func TestValidator_Inbound(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"join", `{"event":"join","data":"abc"}`, true},
		{"join empty", `{"event":"join","data":""}`, false},
		{"join missing", `{"event":"join"}`, false},
		{"join number", `{"event":"join","data":7}`, false},
		{"move", `{"event":"move","data":{"x":10,"y":20.5}}`, true},
		{"move missing y", `{"event":"move","data":{"x":10}}`, false},
		{"move string", `{"event":"move","data":{"x":"1","y":2}}`, false},
		{"click", `{"event":"click"}`, true},
		{"click with junk", `{"event":"click","data":{"a":1}}`, true},
		{"rename", `{"event":"rename","data":"Bob"}`, true},
		{"chat", `{"event":"chat","data":"hello"}`, true},
		{"grow", `{"event":"grow"}`, true},
		{"mine", `{"event":"mine"}`, true},
		{"collect", `{"event":"collect-item","data":"item-1"}`, true},
		{"collect empty", `{"event":"collect-item","data":""}`, false},
		{"spawn bare", `{"event":"spawn-request"}`, true},
		{"spawn coin", `{"event":"spawn-request","data":{"kind":"coin"}}`, true},
		{"spawn trash", `{"event":"spawn-request","data":{"kind":"trash"}}`, false},
		{"unknown", `{"event":"snapshot","data":{}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := protocol.DecodeEnvelope([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			err = v.Validate(env)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected invalid")
			}
		})
	}
}

func TestDecodeEnvelope_RejectsMissingEvent(t *testing.T) {
	if _, err := protocol.DecodeEnvelope([]byte(`{"data":1}`)); err == nil {
		t.Fatalf("expected error for missing event")
	}
	if _, err := protocol.DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for bad json")
	}
}
