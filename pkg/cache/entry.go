package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Request identifies one model invocation: the five fields that determine a
// cache key. Parameters must be the canonical serialized form of the parameter
// mapping (see EncodeParams) so identical parameter sets always hash the same.
type Request struct {
	Model        string
	Parameters   string
	SystemPrompt string
	UserPrompt   string
	Iteration    int
}

// Key returns the cache key for the request: an MD5 digest over the five
// identity fields. Each field is length-prefixed before hashing so that
// arbitrary prompt text can never make two different requests collide by
// concatenation.
func (r Request) Key() string {
	return HashRequest(r.Model, r.Parameters, r.SystemPrompt, r.UserPrompt, r.Iteration)
}

// HashRequest computes the cache key for the given identity fields. It is a
// pure function: the digest depends on nothing but its arguments.
func HashRequest(model, parameters, systemPrompt, userPrompt string, iteration int) string {
	h := md5.New()
	for _, f := range []string{model, parameters, systemPrompt, userPrompt, strconv.Itoa(iteration)} {
		writeField(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, f string) {
	fmt.Fprintf(w, "%d:%s", len(f), f)
}

// EncodeParams serializes a parameter mapping into its canonical string form.
// encoding/json sorts map keys, so identical mappings always produce
// identical strings.
func EncodeParams(params map[string]any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}

// Entry is one memoized model invocation. The five identity fields determine
// the key; Output, Timestamp, Service and Validated are payload and
// bookkeeping. Entries are not mutated after construction.
type Entry struct {
	Model        string `json:"model"`
	Parameters   string `json:"parameters"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	Iteration    int    `json:"iteration"`
	Output       string `json:"output"`
	Timestamp    int64  `json:"timestamp"`
	Service      string `json:"service"`
	Validated    bool   `json:"validated"`
}

// NewEntry builds an Entry from a request and a raw response value. The
// response is JSON-serialized into Output and the entry is stamped with the
// current time.
func NewEntry(req Request, response any) (*Entry, error) {
	out, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return &Entry{
		Model:        req.Model,
		Parameters:   req.Parameters,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Iteration:    req.Iteration,
		Output:       string(out),
		Timestamp:    time.Now().Unix(),
	}, nil
}

// Key returns the entry's cache key, derived from the identity fields only.
func (e *Entry) Key() string {
	return e.Request().Key()
}

// Request returns the identity projection of the entry.
func (e *Entry) Request() Request {
	return Request{
		Model:        e.Model,
		Parameters:   e.Parameters,
		SystemPrompt: e.SystemPrompt,
		UserPrompt:   e.UserPrompt,
		Iteration:    e.Iteration,
	}
}

// DecodeOutput unmarshals the serialized response payload into v.
func (e *Entry) DecodeOutput(v any) error {
	if err := json.Unmarshal([]byte(e.Output), v); err != nil {
		return fmt.Errorf("decode output for key %s: %w", e.Key(), err)
	}
	return nil
}

// Equal reports whether two entries match on every field except Timestamp.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Model == o.Model &&
		e.Parameters == o.Parameters &&
		e.SystemPrompt == o.SystemPrompt &&
		e.UserPrompt == o.UserPrompt &&
		e.Iteration == o.Iteration &&
		e.Output == o.Output &&
		e.Service == o.Service &&
		e.Validated == o.Validated
}
