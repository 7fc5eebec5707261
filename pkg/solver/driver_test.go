package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/gauntlet/pkg/browser"
)

type stubRenderer struct {
	calls int
}

func (r *stubRenderer) Render(_ context.Context, url string) (*browser.Render, error) {
	r.calls++
	return &browser.Render{URL: url, Text: "task page"}, nil
}

// scriptedResolver replays canned answers in order, repeating the last one.
type scriptedResolver struct {
	answers   []*ResolvedAnswer
	submitURL string
	calls     int
}

func (r *scriptedResolver) Resolve(_ context.Context, _ *PageSnapshot) (*ResolvedAnswer, string) {
	idx := r.calls
	if idx >= len(r.answers) {
		idx = len(r.answers) - 1
	}
	r.calls++
	return r.answers[idx], r.submitURL
}

type scriptedSubmitter struct {
	outcomes  []*SubmissionOutcome
	errs      []error
	endpoints []string
	subs      []Submission
}

func (s *scriptedSubmitter) Submit(_ context.Context, endpoint string, sub Submission) (*SubmissionOutcome, error) {
	idx := len(s.endpoints)
	s.endpoints = append(s.endpoints, endpoint)
	s.subs = append(s.subs, sub)
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return nil, err
	}
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	return s.outcomes[idx], nil
}

func boolPtr(b bool) *bool { return &b }

func answer(v interface{}) *ResolvedAnswer {
	return &ResolvedAnswer{Value: v, Strategy: StrategyTabular}
}

func TestDriverAdvancesOnCorrect(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(10.0), answer(20.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(true), NextURL: "https://example.com/task/2"},
		{Correct: boolPtr(true)},
	}}

	d := NewDriver(renderer, resolver, submitter)
	report := d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})

	assert.Equal(t, 2, report.TasksAttempted)
	assert.Equal(t, 2, report.Correct)
	assert.Equal(t, StateTerminated, report.FinalState)
	require.Len(t, submitter.subs, 2)
	assert.Equal(t, "https://example.com/task/2", submitter.subs[1].URL)
}

func TestDriverStopsOnDuplicateRejectedAnswer(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(42.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(false), Reason: "wrong"},
	}}

	d := NewDriver(renderer, resolver, submitter)
	report := d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})

	// The same rejected value is never submitted a third time, let alone a
	// fourth.
	assert.Less(t, len(submitter.subs), 4)
	assert.Equal(t, StateTerminated, report.FinalState)
	assert.Equal(t, 1, report.TasksAttempted)
	assert.Equal(t, 0, report.Correct)
}

func TestDriverRetryCeilingThenAdvance(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{
		answer(1.0), answer(2.0), answer(3.0), answer(99.0),
	}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(false), NextURL: "https://example.com/task/2"},
		{Correct: boolPtr(false), NextURL: "https://example.com/task/2"},
		{Correct: boolPtr(false), NextURL: "https://example.com/task/2"},
		{Correct: boolPtr(true)},
	}}

	d := NewDriver(renderer, resolver, submitter)
	report := d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})

	// Three novel wrong answers exhaust the retry budget, then the driver
	// advances to the offered next URL anyway.
	require.Len(t, submitter.subs, 4)
	assert.Equal(t, "https://example.com/task/2", submitter.subs[3].URL)
	assert.Equal(t, 2, report.TasksAttempted)
	assert.Equal(t, 1, report.Correct)
	assert.Equal(t, 4, report.History.Len())
}

func TestDriverTaskCeiling(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(7.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(true), NextURL: "https://example.com/task/next"},
	}}

	d := NewDriver(renderer, resolver, submitter, WithTaskCeiling(5))
	report := d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})

	assert.Equal(t, 5, report.TasksAttempted)
	assert.Len(t, submitter.subs, 5)
}

func TestDriverSubmitFallbackOnTransportFailure(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{
		answers:   []*ResolvedAnswer{answer(7.0)},
		submitURL: "https://quiz.example.com/grade",
	}
	submitter := &scriptedSubmitter{
		errs:     []error{errors.New("connection refused")},
		outcomes: []*SubmissionOutcome{nil, {Correct: boolPtr(true)}},
	}

	d := NewDriver(renderer, resolver, submitter)
	report := d.Run(context.Background(), &Task{URL: "https://quiz.example.com/task/1"})

	require.Len(t, submitter.endpoints, 2)
	assert.Equal(t, "https://quiz.example.com/grade", submitter.endpoints[0])
	assert.Equal(t, "https://quiz.example.com/submit", submitter.endpoints[1])
	assert.Equal(t, 1, report.Correct)
}

func TestDriverDeadlineStopsBeforeNewTask(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(7.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(true), NextURL: "https://example.com/task/next"},
	}}

	d := NewDriver(renderer, resolver, submitter, WithDeadline(time.Second, time.Second))
	task := &Task{
		URL:       "https://example.com/task/1",
		StartedAt: time.Now().Add(-2 * time.Second),
	}
	report := d.Run(context.Background(), task)

	assert.Equal(t, 0, report.TasksAttempted)
	assert.Empty(t, submitter.subs)
	assert.Equal(t, StateTerminated, report.FinalState)
}

type ctxCapturingRenderer struct {
	ctx context.Context
}

func (r *ctxCapturingRenderer) Render(ctx context.Context, url string) (*browser.Render, error) {
	r.ctx = ctx
	return &browser.Render{URL: url, Text: "task page"}, nil
}

func TestDriverDoesNotDeadlineInFlightRequests(t *testing.T) {
	// Teardown at deadline-plus-grace is the only cancellation mechanism;
	// the context handed to renders and submissions carries no deadline of
	// the driver's making.
	renderer := &ctxCapturingRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(7.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(true)},
	}}

	d := NewDriver(renderer, resolver, submitter)
	d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})

	require.NotNil(t, renderer.ctx)
	_, hasDeadline := renderer.ctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestDriverReleasesTabExactlyOnce(t *testing.T) {
	renderer := &stubRenderer{}
	resolver := &scriptedResolver{answers: []*ResolvedAnswer{answer(7.0)}}
	submitter := &scriptedSubmitter{outcomes: []*SubmissionOutcome{
		{Correct: boolPtr(true)},
	}}

	released := 0
	d := NewDriver(renderer, resolver, submitter, WithTabRelease(func() { released++ }))
	d.Run(context.Background(), &Task{URL: "https://example.com/task/1"})
	d.release()

	assert.Equal(t, 1, released)
}
