// Package solver implements the adaptive answer-resolution pipeline and the
// task progression loop: given a rendered quiz page, work out what artifact
// and operation it demands, compute an answer, submit it, and follow the next
// URL under a session-wide deadline.
package solver

import (
	"time"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/decode"
)

// Task is one solve session handed off by the front door. The driver mutates
// URL as submissions return next URLs; everything else is fixed at handoff.
type Task struct {
	URL       string    `json:"url"`
	Email     string    `json:"email"`
	Secret    string    `json:"secret"`
	StartedAt time.Time `json:"started_at"`
}

// Scope is the target-scope hint of an instruction.
type Scope string

const (
	ScopeNone        Scope = ""
	ScopeFirstColumn Scope = "first-column"
	ScopeAllColumns  Scope = "all-columns"
)

// Instruction is what a page (and/or its transcribed audio) asks for. Fields
// are left unset when the text carries no signal for them; an Instruction is
// never nil once any extraction ran, so callers distinguish "no signal" from
// "no instruction" only at the top level.
type Instruction struct {
	Op     decode.Op
	Filter *decode.Filter
	Scope  Scope
	Cutoff *float64
}

// DiscoveredResources are the downloadable artifacts and submit endpoints
// found on one rendered page, in DOM discovery order, deduplicated by URL.
type DiscoveredResources struct {
	TabularURLs      []string
	AudioURLs        []string
	SubmitCandidates []string

	// ScrapePath is a secondary page referenced by an in-page
	// "Scrape <path>" directive, empty when absent.
	ScrapePath string
}

// PageSnapshot is one immutable capture of a rendered page. A fresh snapshot
// is taken on every visit; stale snapshots are never reused across loop
// iterations.
type PageSnapshot struct {
	URL         string
	Text        string
	HTML        string
	Resources   DiscoveredResources
	Instruction *Instruction
}

// NewPageSnapshot builds a snapshot from a render, running discovery and
// instruction extraction against the same rendered content.
func NewPageSnapshot(render *browser.Render, d *Discoverer) *PageSnapshot {
	return &PageSnapshot{
		URL:         render.URL,
		Text:        render.Text,
		HTML:        render.HTML,
		Resources:   d.Discover(render),
		Instruction: ExtractInstruction(render.Text),
	}
}

// ResolvedAnswer is the single concrete value produced for a page. Value is
// a float64 or a string and is never empty at submission time; the sentinel
// substitution happens exactly once at the resolver boundary.
type ResolvedAnswer struct {
	Value    interface{}
	Strategy string
}

// SubmissionOutcome is a grading response, consumed once per attempt.
type SubmissionOutcome struct {
	Correct *bool  `json:"correct,omitempty"`
	NextURL string `json:"url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// IsCorrect reports whether the grader accepted the answer.
func (o *SubmissionOutcome) IsCorrect() bool {
	return o != nil && o.Correct != nil && *o.Correct
}

// HistoryEntry records one submission attempt.
type HistoryEntry struct {
	URL     string
	Answer  interface{}
	Correct bool
	Reason  string
}

// TaskHistory is the append-only attempt record for one session. It is used
// only for duplicate-answer detection and end-of-session reporting.
type TaskHistory struct {
	entries []HistoryEntry
}

// Append records an attempt.
func (h *TaskHistory) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
}

// Entries returns a copy of the recorded attempts.
func (h *TaskHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded attempts.
func (h *TaskHistory) Len() int {
	return len(h.entries)
}
