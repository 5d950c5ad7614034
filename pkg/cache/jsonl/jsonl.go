// Package jsonl reads and writes the append-log cache encoding: UTF-8 text,
// one JSON object per line, each object a full cache entry. The format is a
// natural union target — appending two logs and reloading yields the merge.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/promptmemo/promptmemo/pkg/cache"
)

// RecordError describes a persisted entry that could not be decoded: a
// malformed line, a missing identity field, or an invalid output payload.
// Loading aborts on the first such record; dropping rows silently would hide
// data loss.
type RecordError struct {
	Line  int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("jsonl line %d: missing identity field %q", e.Line, e.Field)
	}
	return fmt.Sprintf("jsonl line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// record mirrors the entry wire shape with pointer identity fields so a
// missing field is distinguishable from a zero value. Unknown fields are
// ignored for forward compatibility.
type record struct {
	Model        *string `json:"model"`
	Parameters   *string `json:"parameters"`
	SystemPrompt *string `json:"system_prompt"`
	UserPrompt   *string `json:"user_prompt"`
	Iteration    *int    `json:"iteration"`
	Output       string  `json:"output"`
	Timestamp    int64   `json:"timestamp"`
	Service      string  `json:"service"`
	Validated    bool    `json:"validated"`
}

func (r *record) entry(line int) (*cache.Entry, error) {
	for field, ok := range map[string]bool{
		"model":         r.Model != nil,
		"parameters":    r.Parameters != nil,
		"system_prompt": r.SystemPrompt != nil,
		"user_prompt":   r.UserPrompt != nil,
		"iteration":     r.Iteration != nil,
	} {
		if !ok {
			return nil, &RecordError{Line: line, Field: field}
		}
	}
	if r.Output != "" && !json.Valid([]byte(r.Output)) {
		return nil, &RecordError{Line: line, Err: fmt.Errorf("output is not valid JSON")}
	}
	return &cache.Entry{
		Model:        *r.Model,
		Parameters:   *r.Parameters,
		SystemPrompt: *r.SystemPrompt,
		UserPrompt:   *r.UserPrompt,
		Iteration:    *r.Iteration,
		Output:       r.Output,
		Timestamp:    r.Timestamp,
		Service:      r.Service,
		Validated:    r.Validated,
	}, nil
}

// Write encodes every entry of c to w, one JSON object per line, ordered by
// key for stable output.
func Write(w io.Writer, c *cache.Cache) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range c.Entries() {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Key(), err)
		}
	}
	return bw.Flush()
}

// Read decodes an append log into a cache. Each entry is keyed under its own
// recomputed key — a key stored in the file is never trusted, which guards
// against stale or foreign-format logs. Later lines win for duplicate keys,
// matching append semantics.
func Read(r io.Reader) (*cache.Cache, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	var entries []*cache.Entry
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &RecordError{Line: line, Err: err}
		}
		e, err := rec.entry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return cache.FromEntries(entries), nil
}

// WriteFile writes the append log to path, truncating any existing file.
func WriteFile(path string, c *cache.Cache) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write jsonl %s: %w", path, err)
	}
	if err := Write(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads an append log from path.
func ReadFile(path string) (*cache.Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read jsonl %s: %w", path, err)
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
