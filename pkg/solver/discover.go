package solver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/gauntlet/pkg/browser"
)

// tabularPatterns and audioPatterns classify resource URLs by file name.
var (
	tabularPatterns = []string{"*.csv", "*.tsv", "*.psv"}
	audioPatterns   = []string{"*.mp3", "*.wav", "*.ogg", "*.m4a", "*.opus", "*.flac"}
)

var (
	scrapeDirective = regexp.MustCompile(`(?i)\bscrape\s+((?:https?://|/)[^\s"'<>]+)`)
	digitRun        = regexp.MustCompile(`\d{3,}`)
	labeledCode     = regexp.MustCompile(`(?i)(?:secret\s+)?code\s*[:=]\s*([A-Za-z0-9_-]+)`)
	alnumRun        = regexp.MustCompile(`\b[A-Za-z0-9]{4,}\b`)
	submitURLInText = regexp.MustCompile(`https?://[^\s"'<>]*submit[^\s"'<>]*`)
)

// Discoverer classifies a rendered page's links into downloadable resources
// and submit-endpoint candidates.
type Discoverer struct {
	tabular []glob.Glob
	audio   []glob.Glob
}

// NewDiscoverer compiles the classification patterns.
func NewDiscoverer() *Discoverer {
	d := &Discoverer{}
	for _, p := range tabularPatterns {
		d.tabular = append(d.tabular, glob.MustCompile(p))
	}
	for _, p := range audioPatterns {
		d.audio = append(d.audio, glob.MustCompile(p))
	}
	return d
}

// Discover walks a render's links and audio elements in DOM order and
// returns deduplicated, order-preserving resource sets. Any URL containing
// "submit", whether an anchor or a bare substring of the page text, is
// flagged as a submission-endpoint candidate.
func (d *Discoverer) Discover(render *browser.Render) DiscoveredResources {
	var res DiscoveredResources
	seenTabular := make(map[string]bool)
	seenAudio := make(map[string]bool)
	seenSubmit := make(map[string]bool)

	for _, link := range render.Links {
		href := link.Href
		lower := strings.ToLower(href)

		if strings.Contains(lower, "submit") && !seenSubmit[href] {
			seenSubmit[href] = true
			res.SubmitCandidates = append(res.SubmitCandidates, href)
		}

		name := urlBaseName(lower)
		switch {
		case matchAny(d.tabular, name):
			if !seenTabular[href] {
				seenTabular[href] = true
				res.TabularURLs = append(res.TabularURLs, href)
			}
		case matchAny(d.audio, name):
			if !seenAudio[href] {
				seenAudio[href] = true
				res.AudioURLs = append(res.AudioURLs, href)
			}
		}
	}

	for _, src := range render.AudioSources {
		if !seenAudio[src] {
			seenAudio[src] = true
			res.AudioURLs = append(res.AudioURLs, src)
		}
	}

	for _, raw := range submitURLInText.FindAllString(render.Text, -1) {
		if !seenSubmit[raw] {
			seenSubmit[raw] = true
			res.SubmitCandidates = append(res.SubmitCandidates, raw)
		}
	}

	if m := scrapeDirective.FindStringSubmatch(render.Text); m != nil {
		res.ScrapePath = m[1]
	}

	return res
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// urlBaseName returns the final path segment of a URL, query stripped, for
// extension matching.
func urlBaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	path := u.Path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

// ExtractSecretCode pulls a secret-code token out of page text, used when
// the page's task is pure extraction rather than aggregation. Preference
// order: a run of three or more digits, then a labeled code token, then any
// alphanumeric run of four or more characters.
func ExtractSecretCode(text string) string {
	if m := digitRun.FindString(text); m != "" {
		return m
	}
	if m := labeledCode.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := alnumRun.FindString(text); m != "" {
		return m
	}
	return ""
}
