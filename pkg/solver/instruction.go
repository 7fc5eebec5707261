package solver

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/entrhq/gauntlet/pkg/decode"
)

// The instruction extractor is an ordered list of independent matcher
// functions over free text. Each matcher fills at most one field; appending a
// new pattern never touches existing ones.
type matcher func(text string, ins *Instruction)

var matchers = []matcher{
	matchOperation,
	matchFilter,
	matchScope,
	matchCutoff,
}

// opSynonyms maps an operation to its trigger phrases. Phrases are matched
// case-insensitively as substrings of the page text.
var opSynonyms = []struct {
	op      decode.Op
	phrases []string
}{
	{decode.OpSum, []string{"sum", "total", "aggregate", "add up", "add all"}},
	{decode.OpCount, []string{"count", "how many", "number of rows", "number of entries"}},
	{decode.OpAverage, []string{"average", "mean"}},
	{decode.OpMax, []string{"max", "highest", "largest", "biggest"}},
	{decode.OpMin, []string{"min", "lowest", "smallest"}},
	{decode.OpExtract, []string{"secret code", "extract the code", "find the code"}},
}

// filterPatterns are tried in fixed precedence order so the most specific
// phrasing wins: >= before >, <= before <.
var filterPatterns = []struct {
	operator string
	re       *regexp.Regexp
}{
	{">=", regexp.MustCompile(`(?i)(?:>=|at least|no less than|greater than or equal to)\s*(-?\d+(?:\.\d+)?)`)},
	{"<=", regexp.MustCompile(`(?i)(?:<=|at most|no more than|less than or equal to)\s*(-?\d+(?:\.\d+)?)`)},
	{"!=", regexp.MustCompile(`(?i)(?:!=|not equal to)\s*(-?\d+(?:\.\d+)?)`)},
	{"==", regexp.MustCompile(`(?i)(?:==|equal to|exactly)\s*(-?\d+(?:\.\d+)?)`)},
	{">", regexp.MustCompile(`(?i)(?:>|greater than|more than|above|over)\s*(-?\d+(?:\.\d+)?)`)},
	{"<", regexp.MustCompile(`(?i)(?:<|less than|below|under)\s*(-?\d+(?:\.\d+)?)`)},
}

var cutoffPattern = regexp.MustCompile(`(?i)cutoff\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)

// ExtractInstruction derives an instruction from free text. It always
// returns a non-nil Instruction; fields without a signal remain unset.
func ExtractInstruction(text string) *Instruction {
	ins := &Instruction{Op: decode.OpUnknown}
	for _, m := range matchers {
		m(text, ins)
	}
	return ins
}

func matchOperation(text string, ins *Instruction) {
	lower := strings.ToLower(text)
	for _, syn := range opSynonyms {
		for _, phrase := range syn.phrases {
			if strings.Contains(lower, phrase) {
				ins.Op = syn.op
				return
			}
		}
	}
}

func matchFilter(text string, ins *Instruction) {
	for _, fp := range filterPatterns {
		m := fp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		threshold, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			// An unparsable numeric token never yields a partial filter.
			continue
		}
		ins.Filter = &decode.Filter{Operator: fp.operator, Threshold: threshold}
		return
	}
}

func matchScope(text string, ins *Instruction) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "first column"):
		ins.Scope = ScopeFirstColumn
	case strings.Contains(lower, "all columns"), strings.Contains(lower, "every column"):
		ins.Scope = ScopeAllColumns
	}
}

func matchCutoff(text string, ins *Instruction) {
	m := cutoffPattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return
	}
	ins.Cutoff = &v
}

// MergeInstructions overlays audio-derived signals on page-text signals.
// Audio is the authoritative channel, but it overrides per field, not
// wholesale: a field the transcript says nothing about keeps the page value.
func MergeInstructions(page, audio *Instruction) *Instruction {
	if page == nil && audio == nil {
		return nil
	}
	if page == nil {
		page = &Instruction{Op: decode.OpUnknown}
	}

	merged := *page
	if audio == nil {
		return &merged
	}

	if audio.Op != decode.OpUnknown && audio.Op != "" {
		merged.Op = audio.Op
	}
	if audio.Filter != nil {
		merged.Filter = audio.Filter
	}
	if audio.Scope != ScopeNone {
		merged.Scope = audio.Scope
	}
	if audio.Cutoff != nil {
		merged.Cutoff = audio.Cutoff
	}
	return &merged
}

// EffectiveFilter returns the filter to apply to individual values: the
// explicit filter when present, else a "< cutoff" filter derived from a
// standalone cutoff, else nil.
func (ins *Instruction) EffectiveFilter() *decode.Filter {
	if ins == nil {
		return nil
	}
	if ins.Filter != nil {
		return ins.Filter
	}
	if ins.Cutoff != nil {
		return &decode.Filter{Operator: "<", Threshold: *ins.Cutoff}
	}
	return nil
}

// HasConcreteSignal reports whether the instruction carries anything beyond
// defaults, which is how a transcript qualifies as "concrete numeric
// instructions" for strategy selection.
func (ins *Instruction) HasConcreteSignal() bool {
	if ins == nil {
		return false
	}
	return (ins.Op != decode.OpUnknown && ins.Op != "") || ins.Filter != nil || ins.Cutoff != nil
}

// EffectiveOp returns the aggregation operation, defaulting to sum.
func (ins *Instruction) EffectiveOp() decode.Op {
	if ins == nil || ins.Op == decode.OpUnknown || ins.Op == "" {
		return decode.OpSum
	}
	return ins.Op
}
