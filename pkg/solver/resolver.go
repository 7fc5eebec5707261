package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/decode"
	"github.com/entrhq/gauntlet/pkg/llm"
	"github.com/entrhq/gauntlet/pkg/logging"
)

// AnswerUnknown is submitted when no strategy produced a value. The
// substitution happens exactly once, here at the resolver boundary, so the
// driver never re-checks for emptiness.
const AnswerUnknown = "unknown"

// Header inference is stricter for downloaded files than for in-page text:
// a file's first line is only demoted to data on strong numeric evidence.
const fileHeaderThreshold = 0.8

// Fetcher downloads a resource by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Transcriber turns audio bytes into text. Implementations decline by
// returning an empty transcript with a nil error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)
}

// Strategy labels for resolved answers, most specific first.
const (
	StrategyAudioTabular = "audio-tabular"
	StrategyTabular      = "tabular"
	StrategyExtract      = "extract"
	StrategyScrape       = "scrape"
	StrategyTextNumeric  = "text-numeric"
	StrategyLLMFile      = "llm-file"
	StrategyLLMText      = "llm-text"
	StrategySentinel     = "sentinel"
)

// Resolver turns a page snapshot into a single concrete answer. Strategies
// are tried most-specific first: transcript-steered tabular aggregation,
// plain tabular aggregation, scrape directives, a model-identified data
// file, in-page numeric text, and finally a free-text model answer.
type Resolver struct {
	chain       *llm.Chain
	transcriber Transcriber
	files       Fetcher
	renderer    browser.Renderer
	vote        bool
	log         *logging.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRenderer supplies the renderer used for in-page scrape directives.
func WithRenderer(r browser.Renderer) ResolverOption {
	return func(res *Resolver) {
		res.renderer = r
	}
}

// WithVote enables racing two providers for free-text answers.
func WithVote(enabled bool) ResolverOption {
	return func(res *Resolver) {
		res.vote = enabled
	}
}

// NewResolver builds a resolver. chain may be empty and transcriber may be
// nil; the corresponding strategies degrade instead of failing.
func NewResolver(chain *llm.Chain, transcriber Transcriber, files Fetcher, opts ...ResolverOption) *Resolver {
	log, _ := logging.NewLogger("resolver")
	r := &Resolver{
		chain:       chain,
		transcriber: transcriber,
		files:       files,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the answer for a snapshot plus the submit endpoint the
// page advertises (empty when none was found). It never returns an empty
// answer: when every strategy comes up dry the sentinel is substituted.
func (r *Resolver) Resolve(ctx context.Context, snap *PageSnapshot) (*ResolvedAnswer, string) {
	submitURL := ""
	if len(snap.Resources.SubmitCandidates) > 0 {
		submitURL = snap.Resources.SubmitCandidates[0]
	}

	audioIns := r.transcribeInstruction(ctx, snap)
	ins := MergeInstructions(snap.Instruction, audioIns)
	if ins == nil {
		ins = &Instruction{Op: decode.OpUnknown}
	}

	if ins.EffectiveOp() == decode.OpExtract {
		if code := ExtractSecretCode(snap.Text); code != "" {
			return &ResolvedAnswer{Value: code, Strategy: StrategyExtract}, submitURL
		}
	}

	if len(snap.Resources.TabularURLs) > 0 {
		if ans := r.resolveTabular(ctx, snap.Resources.TabularURLs[0], ins, audioIns); ans != nil {
			return ans, submitURL
		}
	}

	if snap.Resources.ScrapePath != "" {
		if ans := r.resolveScrape(ctx, snap.URL, snap.Resources.ScrapePath, ins); ans != nil {
			return ans, submitURL
		}
	}

	analysis := r.analyzePage(ctx, snap)
	if submitURL == "" {
		submitURL = analysis.SubmitURL
	}

	if analysis.FileURL != "" {
		fileURL := resolveAgainst(snap.URL, analysis.FileURL)
		if ans := r.resolveIdentifiedFile(ctx, fileURL, ins); ans != nil {
			return ans, submitURL
		}
	}

	if ins.HasConcreteSignal() {
		values := decode.ExtractNumbers(snap.Text, ins.EffectiveFilter())
		if ans := aggregateNonZero(values, ins.EffectiveOp(), StrategyTextNumeric); ans != nil {
			return ans, submitURL
		}
	}

	if ans := r.modelAnswer(ctx, snap, analysis); ans != nil {
		return ans, submitURL
	}

	return &ResolvedAnswer{Value: AnswerUnknown, Strategy: StrategySentinel}, submitURL
}

// transcribeInstruction fetches and transcribes the page's first audio
// resource and extracts an instruction from the transcript. It returns nil
// when there is no audio, no transcriber, or no concrete signal in the
// transcript, so merging stays a no-op in those cases.
func (r *Resolver) transcribeInstruction(ctx context.Context, snap *PageSnapshot) *Instruction {
	if r.transcriber == nil || len(snap.Resources.AudioURLs) == 0 {
		return nil
	}
	audioURL := snap.Resources.AudioURLs[0]
	data, err := r.files.Get(ctx, audioURL)
	if err != nil {
		r.log.Warnf("audio fetch failed for %s: %v", audioURL, err)
		return nil
	}
	transcript, err := r.transcriber.Transcribe(ctx, data, urlFileName(audioURL))
	if err != nil {
		r.log.Warnf("transcription failed for %s: %v", audioURL, err)
		return nil
	}
	if strings.TrimSpace(transcript) == "" {
		return nil
	}
	r.log.Debugf("transcript: %s", transcript)
	ins := ExtractInstruction(transcript)
	if !ins.HasConcreteSignal() {
		return nil
	}
	return ins
}

func (r *Resolver) resolveTabular(ctx context.Context, tabularURL string, ins, audioIns *Instruction) *ResolvedAnswer {
	data, err := r.files.Get(ctx, tabularURL)
	if err != nil {
		r.log.Warnf("tabular fetch failed for %s: %v", tabularURL, err)
		return nil
	}
	table, err := decode.DecodeTable(data, fileHeaderThreshold)
	if err != nil {
		r.log.Warnf("tabular decode failed for %s: %v", tabularURL, err)
		return nil
	}

	values := tableValues(table, ins)
	if len(values) == 0 {
		// Last resort for a file that decodes but carries no clean cells:
		// sweep the raw bytes for numbers.
		values = decode.ExtractNumbers(string(data), ins.EffectiveFilter())
	}
	strategy := StrategyTabular
	if audioIns != nil {
		strategy = StrategyAudioTabular
	}
	return aggregateNonZero(values, ins.EffectiveOp(), strategy)
}

// aggregateNonZero aggregates values into an answer. An empty value set or a
// zero aggregate counts as no result, so the next strategy tier runs and the
// sentinel substitution stays the single source of placeholder answers.
func aggregateNonZero(values []float64, op decode.Op, strategy string) *ResolvedAnswer {
	if len(values) == 0 {
		return nil
	}
	v := decode.Aggregate(values, op)
	if v == 0 {
		return nil
	}
	return &ResolvedAnswer{Value: v, Strategy: strategy}
}

// tableValues applies the instruction's scope and filter to a decoded table.
// Without an explicit scope the statistically best column is aggregated, and
// when no column carries numeric values the whole table is swept.
func tableValues(table *decode.Table, ins *Instruction) []float64 {
	filter := ins.EffectiveFilter()
	switch ins.Scope {
	case ScopeFirstColumn:
		return table.Column(0, filter)
	case ScopeAllColumns:
		return table.AllColumns(filter)
	default:
		if idx, ok := table.SelectColumn(); ok {
			return table.Column(idx, filter)
		}
		return table.AllColumns(filter)
	}
}

func (r *Resolver) resolveScrape(ctx context.Context, pageURL, scrapePath string, ins *Instruction) *ResolvedAnswer {
	if r.renderer == nil {
		return nil
	}
	target := resolveAgainst(pageURL, scrapePath)
	render, err := r.renderer.Render(ctx, target)
	if err != nil {
		r.log.Warnf("scrape render failed for %s: %v", target, err)
		return nil
	}
	values := decode.ExtractNumbers(render.Text, ins.EffectiveFilter())
	return aggregateNonZero(values, ins.EffectiveOp(), StrategyScrape)
}

// pageAnalysis is the JSON shape the analysis prompt asks the model for.
type pageAnalysis struct {
	FileURL   string `json:"file_url"`
	SubmitURL string `json:"submit_url"`
	Answer    string `json:"answer"`
}

const analysisSystemPrompt = `You analyze quiz pages. Given the text of a page, respond with a single JSON object and nothing else:
{"file_url": "", "submit_url": "", "answer": ""}
file_url: the URL of a data file the question is about, if any.
submit_url: the URL answers should be posted to, if stated.
answer: the answer to the page's question if it can be read directly from the text, else empty.
Use empty strings for anything not present. Do not wrap the JSON in markdown.`

// analyzePage runs the structured analysis pass. It returns a zero-value
// analysis when no provider is configured or the response is unusable.
func (r *Resolver) analyzePage(ctx context.Context, snap *PageSnapshot) pageAnalysis {
	var analysis pageAnalysis
	if r.chain == nil || r.chain.Empty() {
		return analysis
	}

	raw, err := r.chain.Ask(ctx, analysisSystemPrompt, buildAnalysisPrompt(snap))
	if err != nil {
		r.log.Warnf("analysis pass failed: %v", err)
		return analysis
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &analysis); err != nil {
		r.log.Debugf("analysis response was not JSON: %v", err)
	}
	return analysis
}

// modelAnswer is the last resolution tier: the analysis pass's direct
// answer when it gave one, else a free-text completion.
func (r *Resolver) modelAnswer(ctx context.Context, snap *PageSnapshot, analysis pageAnalysis) *ResolvedAnswer {
	if analysis.Answer != "" {
		return &ResolvedAnswer{Value: normalizeAnswer(analysis.Answer), Strategy: StrategyLLMText}
	}
	if r.chain == nil || r.chain.Empty() {
		return nil
	}

	ask := r.chain.Ask
	if r.vote {
		ask = r.chain.Vote
	}
	text, err := ask(ctx, freeTextSystemPrompt, buildAnalysisPrompt(snap))
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return &ResolvedAnswer{Value: normalizeAnswer(text), Strategy: StrategyLLMText}
}

const freeTextSystemPrompt = `You answer quiz questions. Reply with only the answer value: no explanation, no labels, no markdown.`

// resolveIdentifiedFile downloads a model-identified artifact and extracts a
// numeric answer from it. PDF documents are reduced to text first; anything
// else is treated as tabular data.
func (r *Resolver) resolveIdentifiedFile(ctx context.Context, fileURL string, ins *Instruction) *ResolvedAnswer {
	data, err := r.files.Get(ctx, fileURL)
	if err != nil {
		r.log.Warnf("identified file fetch failed for %s: %v", fileURL, err)
		return nil
	}

	if isPDF(data) {
		text := decode.ExtractDocumentText(data)
		values := decode.ExtractNumbers(text, ins.EffectiveFilter())
		return aggregateNonZero(values, ins.EffectiveOp(), StrategyLLMFile)
	}

	table, err := decode.DecodeTable(data, fileHeaderThreshold)
	if err != nil {
		return nil
	}
	return aggregateNonZero(tableValues(table, ins), ins.EffectiveOp(), StrategyLLMFile)
}

func buildAnalysisPrompt(snap *PageSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page URL: %s\n\n", snap.URL)
	b.WriteString("Page text:\n")
	b.WriteString(llm.TruncateForPrompt(snap.Text, llm.DefaultPromptTokenBudget))
	b.WriteString("\n")
	return b.String()
}

func isPDF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}

// stripFences removes a surrounding markdown code fence from a model reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeAnswer trims model decoration from a free-text answer and
// converts purely numeric replies to numbers so grading comparisons are
// type-stable.
func normalizeAnswer(text string) interface{} {
	s := stripFences(text)
	for _, label := range []string{"Answer:", "answer:", "ANSWER:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, label))
	}
	s = strings.Trim(s, "\"'` ")
	if s == "" {
		return AnswerUnknown
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return v
	}
	return s
}

// resolveAgainst resolves ref relative to base, returning ref unchanged when
// either side fails to parse.
func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func urlFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "audio"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "audio"
	}
	return name
}
