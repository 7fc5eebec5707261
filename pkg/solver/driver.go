package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/logging"
)

// State is one step of the session loop.
type State string

const (
	StateNavigating       State = "navigating"
	StateResolving        State = "resolving"
	StateSubmitting       State = "submitting"
	StateCorrectAdvance   State = "correct-advance"
	StateIncorrectRetry   State = "incorrect-retry"
	StateIncorrectAdvance State = "incorrect-advance"
	StateTerminated       State = "terminated"
)

// Submission is the grading payload posted for one attempt.
type Submission struct {
	Email  string      `json:"email"`
	Secret string      `json:"secret"`
	URL    string      `json:"url"`
	Answer interface{} `json:"answer"`
}

// Submitter posts an answer to a grading endpoint.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, sub Submission) (*SubmissionOutcome, error)
}

// AnswerResolver produces an answer and a submit endpoint for a snapshot.
// *Resolver is the production implementation.
type AnswerResolver interface {
	Resolve(ctx context.Context, snap *PageSnapshot) (*ResolvedAnswer, string)
}

// SessionReport summarizes one finished session.
type SessionReport struct {
	TasksAttempted int
	Correct        int
	FinalState     State
	History        *TaskHistory
}

// Driver owns the page-to-page progression loop: render, resolve, submit,
// advance, under a per-task retry budget and a session-wide deadline. The
// browser tab is exclusively owned by the driver for the session and is
// released exactly once on every exit path.
type Driver struct {
	renderer   browser.Renderer
	resolver   AnswerResolver
	discoverer *Discoverer
	submitter  Submitter
	log        *logging.Logger

	taskCeiling  int
	retryCeiling int
	deadline     time.Duration
	grace        time.Duration

	releaseTab func()
	releaseOne sync.Once
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithTaskCeiling caps the number of tasks attempted per session.
func WithTaskCeiling(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.taskCeiling = n
		}
	}
}

// WithRetryCeiling caps submission attempts per task.
func WithRetryCeiling(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.retryCeiling = n
		}
	}
}

// WithDeadline sets the session wall-clock budget and the teardown grace
// period that runs after it.
func WithDeadline(deadline, grace time.Duration) DriverOption {
	return func(d *Driver) {
		if deadline > 0 {
			d.deadline = deadline
		}
		if grace > 0 {
			d.grace = grace
		}
	}
}

// WithTabRelease registers the function that force-releases the browser
// resource. It runs exactly once, on loop exit or on watchdog fire,
// whichever comes first.
func WithTabRelease(release func()) DriverOption {
	return func(d *Driver) {
		d.releaseTab = release
	}
}

// NewDriver builds a session driver.
func NewDriver(renderer browser.Renderer, resolver AnswerResolver, submitter Submitter, opts ...DriverOption) *Driver {
	log, _ := logging.NewLogger("driver")
	d := &Driver{
		renderer:     renderer,
		resolver:     resolver,
		discoverer:   NewDiscoverer(),
		submitter:    submitter,
		log:          log,
		taskCeiling:  20,
		retryCeiling: 3,
		deadline:     100 * time.Second,
		grace:        5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) release() {
	d.releaseOne.Do(func() {
		if d.releaseTab != nil {
			d.releaseTab()
		}
	})
}

// Run drives one session to completion and returns its report. The deadline
// timer runs independently of the loop: if the loop has not exited by
// deadline plus grace, the browser resource is forcibly released so any
// blocked render unblocks with an error. In-flight requests are never
// cancelled at the deadline; their results are simply discarded when the
// loop's pre-task deadline check fires.
func (d *Driver) Run(ctx context.Context, task *Task) *SessionReport {
	if task.StartedAt.IsZero() {
		task.StartedAt = time.Now()
	}
	deadlineAt := task.StartedAt.Add(d.deadline)

	watchdog := time.AfterFunc(time.Until(deadlineAt.Add(d.grace)), func() {
		d.log.Warnf("deadline watchdog fired, releasing browser")
		d.release()
	})
	defer watchdog.Stop()
	defer d.release()

	report := &SessionReport{History: &TaskHistory{}}
	state := StateNavigating

	for report.TasksAttempted < d.taskCeiling {
		if time.Now().After(deadlineAt) {
			d.log.Warnf("session deadline exceeded after %d tasks", report.TasksAttempted)
			state = StateTerminated
			break
		}

		report.TasksAttempted++
		state = d.runTask(ctx, task, report)

		switch state {
		case StateCorrectAdvance, StateIncorrectAdvance:
			// task.URL was already replaced with the next URL.
		default:
			report.FinalState = StateTerminated
			return report
		}
	}

	report.FinalState = StateTerminated
	return report
}

// runTask executes the retry loop for the current task URL. It returns
// StateCorrectAdvance or StateIncorrectAdvance after mutating task.URL to
// the next URL, or StateTerminated when the session is over.
func (d *Driver) runTask(ctx context.Context, task *Task, report *SessionReport) State {
	d.log.Infof("navigating to %s", task.URL)
	render, err := d.renderer.Render(ctx, task.URL)
	if err != nil && render == nil {
		d.log.Errorf("render failed for %s: %v", task.URL, err)
		return StateTerminated
	}
	snap := NewPageSnapshot(render, d.discoverer)

	attempted := make(map[string]bool)

	for attempt := 1; attempt <= d.retryCeiling; attempt++ {
		answer, submitURL := d.resolver.Resolve(ctx, snap)

		endpoint := submitURL
		if endpoint == "" {
			endpoint = originSubmitFallback(task.URL)
		}
		if endpoint == "" {
			d.log.Errorf("no submit endpoint resolvable for %s", task.URL)
			return StateTerminated
		}

		d.log.Infof("attempt %d: submitting %v (strategy %s) to %s", attempt, answer.Value, answer.Strategy, endpoint)
		outcome, err := d.submit(ctx, endpoint, task, answer)
		if err != nil {
			d.log.Warnf("submission failed on attempt %d: %v", attempt, err)
			continue
		}

		report.History.Append(HistoryEntry{
			URL:     task.URL,
			Answer:  answer.Value,
			Correct: outcome.IsCorrect(),
			Reason:  outcome.Reason,
		})

		if outcome.IsCorrect() {
			report.Correct++
			if outcome.NextURL == "" {
				d.log.Infof("correct with no next URL, session complete")
				return StateTerminated
			}
			task.URL = outcome.NextURL
			return StateCorrectAdvance
		}

		key := fmt.Sprintf("%v", answer.Value)
		if attempted[key] {
			// Resubmitting a value the grader already rejected means the
			// approach is non-productive; stop retrying this task.
			d.log.Warnf("duplicate rejected answer %q, abandoning task", key)
			return d.advanceOrTerminate(task, outcome)
		}
		attempted[key] = true

		if attempt == d.retryCeiling {
			return d.advanceOrTerminate(task, outcome)
		}
		d.log.Infof("incorrect (%s), retrying", outcome.Reason)
	}

	return StateTerminated
}

func (d *Driver) advanceOrTerminate(task *Task, outcome *SubmissionOutcome) State {
	if outcome.NextURL != "" {
		task.URL = outcome.NextURL
		return StateIncorrectAdvance
	}
	return StateTerminated
}

// submit posts the answer, retrying once against the same-origin /submit
// fallback on transport failure.
func (d *Driver) submit(ctx context.Context, endpoint string, task *Task, answer *ResolvedAnswer) (*SubmissionOutcome, error) {
	sub := Submission{
		Email:  task.Email,
		Secret: task.Secret,
		URL:    task.URL,
		Answer: answer.Value,
	}
	outcome, err := d.submitter.Submit(ctx, endpoint, sub)
	if err == nil {
		return outcome, nil
	}

	fallback := originSubmitFallback(task.URL)
	if fallback == "" || fallback == endpoint {
		return nil, err
	}
	d.log.Warnf("submit to %s failed (%v), falling back to %s", endpoint, err, fallback)
	return d.submitter.Submit(ctx, fallback, sub)
}

// originSubmitFallback guesses <scheme>://<host>/submit from a task URL.
func originSubmitFallback(taskURL string) string {
	u, err := url.Parse(taskURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/submit"
}

// HTTPSubmitter posts submissions as JSON over HTTP.
type HTTPSubmitter struct {
	client *http.Client
}

// NewHTTPSubmitter builds a submitter; a nil client uses a default with a
// fixed timeout.
func NewHTTPSubmitter(client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPSubmitter{client: client}
}

// Submit posts the submission and decodes the grading response. Non-2xx
// statuses are transport failures.
func (s *HTTPSubmitter) Submit(ctx context.Context, endpoint string, sub Submission) (*SubmissionOutcome, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read grading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("grading endpoint returned status %d", resp.StatusCode)
	}

	var outcome SubmissionOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode grading response: %w", err)
	}
	return &outcome, nil
}
