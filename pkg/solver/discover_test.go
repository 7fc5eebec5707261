package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/gauntlet/pkg/browser"
)

func TestDiscoverClassifiesResources(t *testing.T) {
	d := NewDiscoverer()
	render := &browser.Render{
		URL: "https://example.com/task/1",
		Links: []browser.Link{
			{Text: "data", Href: "https://example.com/files/data.csv"},
			{Text: "data again", Href: "https://example.com/files/data.csv"},
			{Text: "hints", Href: "https://example.com/files/hint.mp3"},
			{Text: "submit here", Href: "https://example.com/submit"},
			{Text: "readme", Href: "https://example.com/files/readme.txt"},
			{Text: "tsv", Href: "https://example.com/files/extra.tsv?cache=1"},
		},
		AudioSources: []string{"https://example.com/files/voice.wav"},
	}

	res := d.Discover(render)

	assert.Equal(t, []string{
		"https://example.com/files/data.csv",
		"https://example.com/files/extra.tsv?cache=1",
	}, res.TabularURLs)
	assert.Equal(t, []string{
		"https://example.com/files/hint.mp3",
		"https://example.com/files/voice.wav",
	}, res.AudioURLs)
	assert.Equal(t, []string{"https://example.com/submit"}, res.SubmitCandidates)
	assert.Empty(t, res.ScrapePath)
}

func TestDiscoverSubmitCandidateFromText(t *testing.T) {
	d := NewDiscoverer()
	render := &browser.Render{
		URL:  "https://example.com/task/2",
		Text: "POST your answer to https://example.com/api/submit when done.",
	}

	res := d.Discover(render)
	assert.Equal(t, []string{"https://example.com/api/submit"}, res.SubmitCandidates)
}

func TestDiscoverScrapeDirective(t *testing.T) {
	d := NewDiscoverer()
	render := &browser.Render{
		URL:  "https://example.com/task/3",
		Text: "Scrape /hidden/numbers and sum what you find.",
	}

	res := d.Discover(render)
	assert.Equal(t, "/hidden/numbers", res.ScrapePath)
}

func TestExtractSecretCode(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"digit run wins", "Your code is 48213, write it down", "48213"},
		{"labeled code", "secret code: Xy-9", "Xy-9"},
		{"alnum fallback", "token ab12!", "token"},
		{"nothing", "no. 1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractSecretCode(tc.text))
		})
	}
}
