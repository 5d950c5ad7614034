package cache

import (
	"encoding/json"
	"testing"
)

func exampleRequest() Request {
	return Request{
		Model:        "gpt-3.5-turbo",
		Parameters:   "{'temperature': 0.5}",
		SystemPrompt: "The quick brown fox jumps over the lazy dog.",
		UserPrompt:   "What does the fox say?",
		Iteration:    1,
	}
}

func TestHashRequestDeterminism(t *testing.T) {
	req := exampleRequest()
	if got := req.Key(); got != req.Key() {
		t.Error("same request should produce the same key")
	}

	// Pinned vector for the length-prefixed MD5 scheme. Changing the scheme
	// invalidates every persisted store, so this must never drift.
	const want = "f28b27ab009d9b5f4b55b379bac20747"
	if got := req.Key(); got != want {
		t.Errorf("key = %s, want %s", got, want)
	}
}

func TestHashRequestIdentityFields(t *testing.T) {
	base := exampleRequest()

	variants := map[string]Request{
		"model":         {Model: "gpt-4", Parameters: base.Parameters, SystemPrompt: base.SystemPrompt, UserPrompt: base.UserPrompt, Iteration: base.Iteration},
		"parameters":    {Model: base.Model, Parameters: "{'temperature': 0.9}", SystemPrompt: base.SystemPrompt, UserPrompt: base.UserPrompt, Iteration: base.Iteration},
		"system_prompt": {Model: base.Model, Parameters: base.Parameters, SystemPrompt: "other", UserPrompt: base.UserPrompt, Iteration: base.Iteration},
		"user_prompt":   {Model: base.Model, Parameters: base.Parameters, SystemPrompt: base.SystemPrompt, UserPrompt: "other", Iteration: base.Iteration},
		"iteration":     {Model: base.Model, Parameters: base.Parameters, SystemPrompt: base.SystemPrompt, UserPrompt: base.UserPrompt, Iteration: 2},
	}
	for field, req := range variants {
		if req.Key() == base.Key() {
			t.Errorf("changing %s should change the key", field)
		}
	}
}

func TestHashRequestFieldBoundaries(t *testing.T) {
	// Length prefixing must keep adjacent fields from bleeding into each
	// other: "ab"+"c" and "a"+"bc" concatenate identically.
	a := Request{Model: "ab", Parameters: "c"}
	b := Request{Model: "a", Parameters: "bc"}
	if a.Key() == b.Key() {
		t.Error("field boundaries must be unambiguous")
	}
}

func TestEncodeParamsDeterministic(t *testing.T) {
	p1, err := EncodeParams(map[string]any{"top_p": 1, "temperature": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := EncodeParams(map[string]any{"temperature": 0.5, "top_p": 1})
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Errorf("identical parameter sets must encode identically: %s vs %s", p1, p2)
	}
}

func TestNewEntry(t *testing.T) {
	e, err := NewEntry(exampleRequest(), "The fox says hello")
	if err != nil {
		t.Fatal(err)
	}
	if e.Output != `"The fox says hello"` {
		t.Errorf("output = %s", e.Output)
	}
	if e.Timestamp == 0 {
		t.Error("expected timestamp to be stamped")
	}
	if e.Key() != exampleRequest().Key() {
		t.Error("entry key must match its request key")
	}

	var out string
	if err := e.DecodeOutput(&out); err != nil {
		t.Fatal(err)
	}
	if out != "The fox says hello" {
		t.Errorf("decoded output = %q", out)
	}
}

func TestEntryEqualIgnoresTimestamp(t *testing.T) {
	e1, err := NewEntry(exampleRequest(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	e2 := *e1
	e2.Timestamp = e1.Timestamp + 1000

	if !e1.Equal(&e2) {
		t.Error("entries differing only in timestamp must be equal")
	}

	e3 := *e1
	e3.Output = `"other"`
	if e1.Equal(&e3) {
		t.Error("entries with different output must not be equal")
	}
}

func TestEntryJSONRoundTrip(t *testing.T) {
	e1, err := NewEntry(exampleRequest(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	e1.Service = "openai"
	e1.Validated = true

	data, err := json.Marshal(e1)
	if err != nil {
		t.Fatal(err)
	}
	var e2 Entry
	if err := json.Unmarshal(data, &e2); err != nil {
		t.Fatal(err)
	}

	// The round trip is lossless for every field, timestamp included.
	if e2 != *e1 {
		t.Errorf("round trip mismatch:\n  in:  %+v\n  out: %+v", *e1, e2)
	}
}
