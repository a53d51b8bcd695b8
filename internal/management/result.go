package management

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Result is the outcome envelope shared by the HTTP endpoints and the
// admin tool.
type Result struct {
	Command  string         `json:"command"`
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	Response map[string]any `json:"response,omitempty"`

	// err keeps the original error so transports can map it onto their
	// own status codes; only the rendered message is serialized.
	err error
}

// NewResult starts an envelope for a command.
func NewResult(command string) *Result {
	return &Result{Command: command, Start: time.Now().UTC()}
}

// Success closes the envelope with a response payload.
func (r *Result) Success(response map[string]any) *Result {
	r.Status = "OK"
	r.End = time.Now().UTC()
	r.Response = response
	return r
}

// Fail closes the envelope with an error.
func (r *Result) Fail(err error) *Result {
	r.Status = "Error"
	r.End = time.Now().UTC()
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Err returns the error the envelope was failed with, if any.
func (r *Result) Err() error {
	return r.err
}

// Render writes the envelope to w as text or JSON.
func (r *Result) Render(w io.Writer, format string) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if r.Status != "OK" {
		fmt.Fprintf(w, "%s: %s\n", r.Command, r.Error)
		return nil
	}

	fmt.Fprintf(w, "%s: %s\n", r.Command, r.Status)

	keys := make([]string, 0, len(r.Response))
	for k := range r.Response {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := r.Response[k].(type) {
		case []string:
			for _, item := range v {
				fmt.Fprintf(w, "  %s\n", item)
			}
		default:
			fmt.Fprintf(w, "  %s: %v\n", k, v)
		}
	}
	return nil
}
