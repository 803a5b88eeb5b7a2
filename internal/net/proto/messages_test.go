package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr bool
		native  string
	}{
		{name: "call", payload: `{"type":"call","id":"1","native":" tracker.read ","args":{"handle":1}}`, native: "tracker.read"},
		{name: "versioned call", payload: `{"ver":1,"type":"call","native":"nav.loaded"}`, native: "nav.loaded"},
		{name: "heartbeat", payload: `{"type":"heartbeat","sentAt":5}`},
		{name: "missing native", payload: `{"type":"call"}`, wantErr: true},
		{name: "unknown type", payload: `{"type":"input"}`, wantErr: true},
		{name: "future version", payload: `{"ver":9,"type":"call","native":"x"}`, wantErr: true},
		{name: "not json", payload: `call`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %s", tc.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Native != tc.native {
				t.Fatalf("expected native %q, got %q", tc.native, msg.Native)
			}
		})
	}
}

func TestDecodeKeepsRawArgs(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"call","native":"entity.spawn","args":{"pos":[1,2,3]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(msg.Args) != `{"pos":[1,2,3]}` {
		t.Fatalf("unexpected args %s", msg.Args)
	}
}

func TestFailureCarriesCodeAndMessage(t *testing.T) {
	data, err := json.Marshal(Failure("7", CodeUnknownNative, errors.New("nope")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["ok"] != false || decoded["code"] != CodeUnknownNative || decoded["error"] != "nope" || decoded["id"] != "7" {
		t.Fatalf("unexpected failure payload %s", data)
	}
	if decoded["type"] != TypeResult {
		t.Fatalf("expected result type, got %v", decoded["type"])
	}
}
