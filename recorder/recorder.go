// Package recorder captures prompt/response traffic from bots for
// later inspection. A recorder only observes calls while bound to a
// context; bindings follow lexical context scoping, so an inner
// binding shadows an outer one and the outer binding applies again
// wherever the outer context is still in use.
package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Entry is one recorded prompt/response exchange.
type Entry struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Recorder accumulates prompt/response entries in order. Safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{}
}

// Log appends one exchange. It never fails.
func (r *Recorder) Log(prompt, response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Prompt: prompt, Response: response})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports how many exchanges have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Save writes the transcript to path as markdown. Each exchange is
// rendered as the bold-marked prompt, a blank line, the response, and
// a trailing blank line.
func (r *Recorder) Save(path string) error {
	var b strings.Builder
	for _, entry := range r.Entries() {
		fmt.Fprintf(&b, "**%s**\n\n%s\n\n", entry.Prompt, entry.Response)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("recorder: save transcript to %q: %w", path, err)
	}
	return nil
}

// WriteCSV writes the entries as a two-column table for inspection.
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"prompt", "response"}); err != nil {
		return fmt.Errorf("recorder: write csv header: %w", err)
	}
	for _, entry := range r.Entries() {
		if err := cw.Write([]string{entry.Prompt, entry.Response}); err != nil {
			return fmt.Errorf("recorder: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("recorder: flush csv: %w", err)
	}
	return nil
}
