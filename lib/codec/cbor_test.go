// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{
		"zebra":  "last",
		"alpha":  "first",
		"middle": int64(42),
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal (second): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("deterministic encoding produced different bytes:\n%x\n%x", first, second)
	}
}

func TestRoundTripStruct(t *testing.T) {
	type request struct {
		Action      string `cbor:"action"`
		ComponentID string `cbor:"component_id,omitempty"`
		Port        uint16 `cbor:"port,omitempty"`
	}

	original := request{Action: "grant-network", ComponentID: "echo", Port: 8443}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded request
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip = %+v, want %+v", decoded, original)
	}
}

func TestDecodeIntoAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["outer"])
	}
}

func TestRawMessageDelaysDecoding(t *testing.T) {
	type envelope struct {
		Action string     `cbor:"action"`
		Data   RawMessage `cbor:"data,omitempty"`
	}
	type payload struct {
		Key string `cbor:"key"`
	}

	inner, err := Marshal(payload{Key: "API_KEY"})
	if err != nil {
		t.Fatalf("Marshal payload: %v", err)
	}
	outer, err := Marshal(envelope{Action: "revoke-env", Data: inner})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	var decodedEnvelope envelope
	if err := Unmarshal(outer, &decodedEnvelope); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	var decodedPayload payload
	if err := Unmarshal(decodedEnvelope.Data, &decodedPayload); err != nil {
		t.Fatalf("Unmarshal delayed payload: %v", err)
	}
	if decodedPayload.Key != "API_KEY" {
		t.Fatalf("delayed payload key = %q, want %q", decodedPayload.Key, "API_KEY")
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buffer bytes.Buffer

	encoder := NewEncoder(&buffer)
	for _, action := range []string{"load", "unload"} {
		if err := encoder.Encode(map[string]string{"action": action}); err != nil {
			t.Fatalf("Encode %q: %v", action, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"load", "unload"} {
		var decoded map[string]string
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded["action"] != want {
			t.Fatalf("decoded action = %q, want %q", decoded["action"], want)
		}
	}
}
