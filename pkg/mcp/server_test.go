package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/promptmemo/promptmemo/pkg/cache"
)

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name string, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(cache.New(), "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "promptmemo" {
		t.Errorf("server name = %s, want promptmemo", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(cache.New(), "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	if len(result.Tools) != 3 {
		t.Errorf("got %d tools, want 3", len(result.Tools))
	}

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"memo_fetch", "memo_store", "memo_stats"} {
		if !names[want] {
			t.Errorf("missing tool: %s", want)
		}
	}
}

func TestToolCallStoreThenFetch(t *testing.T) {
	srv := New(cache.New(), "test")

	args := `{"model":"gpt-4","parameters":"{}","system_prompt":"s","user_prompt":"u","iteration":0,"response":{"text":"hello"}}`
	result := callTool(t, srv, "memo_store", args)
	if result.IsError {
		t.Fatalf("store failed: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "stored under key ") {
		t.Errorf("unexpected store output: %s", result.Content[0].Text)
	}

	fetchArgs := `{"model":"gpt-4","parameters":"{}","system_prompt":"s","user_prompt":"u","iteration":0}`
	result = callTool(t, srv, "memo_fetch", fetchArgs)
	if !strings.Contains(result.Content[0].Text, `"text":"hello"`) {
		t.Errorf("expected stored output in fetch result, got: %s", result.Content[0].Text)
	}
}

func TestToolCallFetchMiss(t *testing.T) {
	srv := New(cache.New(), "test")

	args := `{"model":"gpt-4","parameters":"{}","system_prompt":"s","user_prompt":"u","iteration":0}`
	result := callTool(t, srv, "memo_fetch", args)
	if result.IsError {
		t.Fatal("a miss must not be an error")
	}
	if result.Content[0].Text != "miss" {
		t.Errorf("expected miss, got: %s", result.Content[0].Text)
	}
}

func TestToolCallStoreMissingResponse(t *testing.T) {
	srv := New(cache.New(), "test")

	args := `{"model":"gpt-4","parameters":"{}","system_prompt":"s","user_prompt":"u"}`
	result := callTool(t, srv, "memo_store", args)
	if !result.IsError {
		t.Error("expected isError=true for missing response")
	}
}

func TestToolCallStats(t *testing.T) {
	c := cache.New()
	if _, err := c.Store(cache.Request{Model: "gpt-4", Parameters: "{}"}, "out"); err != nil {
		t.Fatal(err)
	}
	c.Fetch(cache.Request{Model: "gpt-4", Parameters: "{}"}) // hit
	c.Fetch(cache.Request{Model: "gpt-4", Parameters: "xx"}) // miss
	srv := New(c, "test")

	result := callTool(t, srv, "memo_stats", `{}`)
	text := result.Content[0].Text
	if !strings.Contains(text, "Entries:  1") || !strings.Contains(text, "50.0%") {
		t.Errorf("unexpected cache stats output: %s", text)
	}
}

func TestToolCallCacheNotConfigured(t *testing.T) {
	srv := New(nil, "test")

	result := callTool(t, srv, "memo_stats", `{}`)
	if !strings.Contains(result.Content[0].Text, "not configured") {
		t.Errorf("expected 'not configured', got: %s", result.Content[0].Text)
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(cache.New(), "test")

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(cache.New(), "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}
