package domain

import (
	"strings"
	"testing"
)

func TestDecodeSyncMessage_RejectsUnknownKind(t *testing.T) {
	_, err := DecodeSyncMessage([]byte(`{"type": "EVAL", "payload": {}}`))
	if err == nil {
		t.Fatal("expected unknown-kind error")
	}
	if !strings.Contains(err.Error(), "EVAL") {
		t.Errorf("error does not name the kind: %v", err)
	}
}

func TestDecodeSyncMessage_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json", `"CODE"`} {
		if _, err := DecodeSyncMessage([]byte(raw)); err == nil {
			t.Errorf("DecodeSyncMessage(%q) accepted", raw)
		}
	}
}

func TestDecodeSyncMessage_WireShape(t *testing.T) {
	// Messages arriving from the original wire format: a type tag plus a
	// kind-specific payload object.
	raw := `{"type": "PROBLEM", "payload": {
		"id": "p1",
		"title": "Two Sum",
		"description": "Find two indices.",
		"difficulty": "Easy",
		"tags": ["Array"],
		"examples": [{"input": "nums=[1,2]", "output": "[0,1]", "explanation": ""}],
		"starterCode": "function twoSum() {}"
	}}`

	msg, err := DecodeSyncMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != SyncProblem {
		t.Fatalf("kind = %q", msg.Kind)
	}

	p, err := msg.ProblemPayload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Title != "Two Sum" || p.Difficulty != DifficultyEasy || p.StarterCode != "function twoSum() {}" {
		t.Errorf("problem = %+v", p)
	}
	if len(p.Examples) != 1 || p.Examples[0].Input != "nums=[1,2]" {
		t.Errorf("examples = %+v", p.Examples)
	}
}

func TestCodeUpdate_RoundTrip(t *testing.T) {
	code := "const x = 1;\nconsole.log(x);"
	data, err := NewCodeUpdate(code).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := DecodeSyncMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := msg.CodePayload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got != code {
		t.Errorf("code = %q", got)
	}
}

func TestChatMessage_CarriesSenderAndTimestamp(t *testing.T) {
	data, err := NewChatMessage(ChatEntry{
		ID: "m1", Sender: SenderUser, Text: "ready?", Timestamp: 1700000000000,
	}).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := DecodeSyncMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entry, err := msg.ChatPayload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if entry.Sender != SenderUser || entry.Text != "ready?" || entry.Timestamp != 1700000000000 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestPayloadDecode_WrongShapeErrors(t *testing.T) {
	msg, err := DecodeSyncMessage([]byte(`{"type": "CODE", "payload": {"nested": true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := msg.CodePayload(); err == nil {
		t.Error("object payload accepted as code string")
	}
}
