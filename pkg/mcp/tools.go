package mcp

import (
	"encoding/json"

	"github.com/promptmemo/promptmemo/pkg/cache"
)

// requestArgs carries the five identity fields shared by fetch and store.
type requestArgs struct {
	Model        string `json:"model"`
	Parameters   string `json:"parameters"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	Iteration    int    `json:"iteration"`
}

func (a requestArgs) request() cache.Request {
	return cache.Request{
		Model:        a.Model,
		Parameters:   a.Parameters,
		SystemPrompt: a.SystemPrompt,
		UserPrompt:   a.UserPrompt,
		Iteration:    a.Iteration,
	}
}

type storeArgs struct {
	requestArgs
	Response json.RawMessage `json:"response"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"memo_fetch": handleFetch,
	"memo_store": handleStore,
	"memo_stats": handleStats,
}

var identityProperties = map[string]any{
	"model": map[string]any{
		"type":        "string",
		"description": "Model identifier",
	},
	"parameters": map[string]any{
		"type":        "string",
		"description": "Canonical serialized parameter mapping",
	},
	"system_prompt": map[string]any{
		"type":        "string",
		"description": "System prompt text",
	},
	"user_prompt": map[string]any{
		"type":        "string",
		"description": "User prompt text",
	},
	"iteration": map[string]any{
		"type":        "integer",
		"description": "Iteration number for repeated identical requests",
	},
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "memo_fetch",
		Description: "Look up the cached response for a request identity. A miss is reported, not an error.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"model", "parameters", "system_prompt", "user_prompt"},
			"properties": identityProperties,
		},
	},
	{
		Name:        "memo_store",
		Description: "Record a response under a request identity and return the derived cache key.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"model", "parameters", "system_prompt", "user_prompt", "response"},
			"properties": merge(identityProperties, map[string]any{
				"response": map[string]any{
					"description": "The raw response payload (any JSON value)",
				},
			}),
		},
	},
	{
		Name:        "memo_stats",
		Description: "Show cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}

func merge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleFetch(s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.memo == nil {
		return textResult("Cache is not configured.")
	}
	var args requestArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Model == "" {
		return errorResult("model is required")
	}
	output, entry, ok := s.memo.Fetch(args.request())
	if !ok {
		return textResult("miss")
	}
	return textResult(formatHit(entry, output))
}

func handleStore(s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.memo == nil {
		return textResult("Cache is not configured.")
	}
	var args storeArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Model == "" {
		return errorResult("model is required")
	}
	if len(args.Response) == 0 {
		return errorResult("response is required")
	}
	key, err := s.memo.Store(args.request(), args.Response)
	if err != nil {
		return errorResult("Error storing response: " + err.Error())
	}
	return textResult("stored under key " + key)
}

func handleStats(s *Server, _ json.RawMessage) ToolCallResult {
	if s.memo == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.memo.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
