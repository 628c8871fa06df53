package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vmihailenco/msgpack/v5"
)

const snapshotSchema = `{
  "type": "object",
  "required": ["t", "k", "p", "f", "l"],
  "properties": {
    "t": {"const": "s"},
    "k": {"type": "integer", "minimum": 0},
    "p": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["x", "y", "a", "p", "w", "c", "k", "n", "s"],
        "properties": {
          "s": {"type": "array", "minItems": 1, "items": {"type": "array", "minItems": 2, "maxItems": 2}},
          "b": {"const": 1}
        }
      }
    },
    "f": {
      "type": "object",
      "required": ["a", "r"],
      "properties": {
        "a": {"type": "object", "additionalProperties": {"type": "object", "required": ["x", "y", "c", "v", "l"]}},
        "r": {"type": "array", "items": {"type": "string"}}
      }
    },
    "l": {"type": "array", "items": {"type": "object", "required": ["i", "n", "p"]}}
  }
}`

const deathSchema = `{
  "type": "object",
  "required": ["t", "p"],
  "additionalProperties": false,
  "properties": {"t": {"const": "d"}, "p": {"type": "integer"}}
}`

func sampleSnapshot() TickSnapshot {
	return TickSnapshot{
		Type: MsgState,
		Tick: 42,
		Agents: map[string]AgentDTO{
			"a1": {
				X: 10.5, Y: 20, Angle: 1.57, Length: 12, Radius: 6, Color: "#ff0000",
				Skin: "stripe", Name: "Neon Viper", Boosting: 1,
				Body: [][2]float64{{10.5, 20}, {3, 20}},
			},
		},
		Food: FoodDelta{
			Added:   map[string]FoodDTO{"f1": {X: 1, Y: 2, Color: "#00ff00", Value: 5, IsLoot: 1}},
			Removed: []string{"f0"},
		},
		Leaderboard: []LeaderboardEntry{{ID: "a1", Name: "Neon Viper", Score: 12}},
	}
}

func validateJSON(t *testing.T, schema string, msg Message) {
	t.Helper()
	s, err := jsonschema.CompileString(msg.MsgType()+".schema.json", schema)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	b, err := Encode(msg, JSON)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate %s: %v", b, err)
	}
}

func TestSchemas_ValidateOutbound(t *testing.T) {
	validateJSON(t, snapshotSchema, sampleSnapshot())
	validateJSON(t, deathSchema, DeathNotice{Type: MsgDeath, Score: 31})
}

func TestEncode_MsgPackUsesCompactKeys(t *testing.T) {
	b, err := Encode(sampleSnapshot(), MsgPack)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var generic map[string]any
	if err := msgpack.Unmarshal(b, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if generic["t"] != "s" {
		t.Fatalf("type key: got %v want s", generic["t"])
	}
	if _, ok := generic["p"]; !ok {
		t.Fatalf("agents key p missing: %v", generic)
	}
}

func TestDecodeIntent(t *testing.T) {
	cases := []struct {
		raw  string
		want Intent
	}{
		{`{"t":"h","a":1.25}`, SetHeading{Angle: 1.25}},
		{`{"t":"h","a":0}`, SetHeading{Angle: 0}},
		{`{"t":"b","b":1}`, SetBoost{On: true}},
		{`{"t":"b","b":0}`, SetBoost{On: false}},
		{`{"t":"r"}`, RequestRespawn{}},
		{`{"t":"x"}`, EnterSpectator{}},
		{`{"t":"g","m":40}`, GrantMass{Amount: 40}},
	}
	for _, tc := range cases {
		got, err := DecodeIntent([]byte(tc.raw), JSON)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %#v want %#v", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeIntent_Rejects(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`{"t":"h"}`, ErrMalformed},
		{`{"t":"g","m":-3}`, ErrMalformed},
		{`not json`, ErrMalformed},
		{`{"t":"zz"}`, ErrUnknownType},
		{`{"t":"s"}`, ErrUnknownType},
	}
	for _, tc := range cases {
		_, err := DecodeIntent([]byte(tc.raw), JSON)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.raw, err, tc.want)
		}
	}
}

func TestDecodeIntent_MsgPack(t *testing.T) {
	angle := -0.5
	raw, err := msgpack.Marshal(map[string]any{"t": "h", "a": angle})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeIntent(raw, MsgPack)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (SetHeading{Angle: angle}) {
		t.Fatalf("got %#v", got)
	}
}

func TestParseEncoding(t *testing.T) {
	if e, err := ParseEncoding(""); err != nil || e != JSON {
		t.Fatalf("empty: got %v %v", e, err)
	}
	if e, err := ParseEncoding("msgpack"); err != nil || e != MsgPack {
		t.Fatalf("msgpack: got %v %v", e, err)
	}
	if _, err := ParseEncoding("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}
