package viewerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"spherestream/internal/viewerproto"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", "viewer", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals a Go message and decodes it generically, the way the
// validator expects it.
func roundTrip(t *testing.T, msg any) any {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestSchemas_ValidateServerMessages(t *testing.T) {
	show := viewerproto.ShowMsg{
		Type:            viewerproto.TypeShow,
		ProtocolVersion: viewerproto.Version,
		ID:              7,
		Kind:            "SPHERE",
		Pos:             [3]float64{1, 2, -3},
		Rot:             [4]float64{1, 0, 0, 0},
		Scale:           0.9,
		Parent:          "world",
		Style:           "grass",
		Static:          true,
	}
	cases := []struct {
		schema string
		msg    any
	}{
		{"welcome.schema.json", viewerproto.WelcomeMsg{
			Type:            viewerproto.TypeWelcome,
			ProtocolVersion: viewerproto.Version,
			SessionID:       "V1",
			Driving:         true,
			WorldParams:     viewerproto.WorldParams{TickRateHz: 20, ChunkRadius: 8, UnloadRadius: 12, CellSpacing: 1, Parent: "world"},
		}},
		{"show.schema.json", show},
		{"hide.schema.json", viewerproto.HideMsg{Type: viewerproto.TypeHide, ProtocolVersion: viewerproto.Version, ID: 7}},
		{"resync.schema.json", viewerproto.ResyncMsg{Type: viewerproto.TypeResync, ProtocolVersion: viewerproto.Version, Visuals: []viewerproto.ShowMsg{show}}},
		{"resync.schema.json", viewerproto.ResyncMsg{Type: viewerproto.TypeResync, ProtocolVersion: viewerproto.Version, Visuals: []viewerproto.ShowMsg{}}},
		{"tick.schema.json", viewerproto.TickMsg{Type: viewerproto.TypeTick, ProtocolVersion: viewerproto.Version, Tick: 3, Generated: 12, LiveCells: 40}},
		{"tick.schema.json", viewerproto.TickMsg{Type: viewerproto.TypeTick, ProtocolVersion: viewerproto.Version, Tick: 4, Skipped: true, Reason: "no observer"}},
	}
	for _, c := range cases {
		if err := compile(t, c.schema).Validate(roundTrip(t, c.msg)); err != nil {
			t.Fatalf("%s: %v", c.schema, err)
		}
	}
}

func TestSchemas_ValidateClientMessages(t *testing.T) {
	hello := compile(t, "hello.schema.json")
	if err := hello.Validate(roundTrip(t, viewerproto.HelloMsg{Type: viewerproto.TypeHello, ProtocolVersion: viewerproto.Version, Name: "editor", Drive: true})); err != nil {
		t.Fatalf("hello: %v", err)
	}
	position := compile(t, "position.schema.json")
	if err := position.Validate(roundTrip(t, viewerproto.PositionMsg{Type: viewerproto.TypePosition, ProtocolVersion: viewerproto.Version, Pos: [3]float64{0.5, 0, 12}})); err != nil {
		t.Fatalf("position: %v", err)
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	var bad any
	_ = json.Unmarshal([]byte(`{"type":"POSITION","protocol_version":"0.1","pos":[1,2]}`), &bad)
	if err := compile(t, "position.schema.json").Validate(bad); err == nil {
		t.Fatal("expected short pos to be rejected")
	}
	_ = json.Unmarshal([]byte(`{"type":"SHOW","protocol_version":"0.1","id":1,"kind":"ROCK","pos":[0,0,0],"rot":[1,0,0,0],"scale":1,"style":"x","static":true,"shadows":false}`), &bad)
	if err := compile(t, "show.schema.json").Validate(bad); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}
