package blocks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/pkg/core"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	return r
}

func TestMarkdown(t *testing.T) {
	got := string(Markdown("**24/7** patrols\n\n<script>alert(1)</script>"))
	assert.Contains(t, got, "<strong>24/7</strong>")
	assert.NotContains(t, got, "<script>")
}

func TestMarkdown_KeepsFractions(t *testing.T) {
	got := string(Markdown("Monitoring 24/7, 365 days a year."))
	assert.Contains(t, got, "24/7")
	assert.NotContains(t, got, "&frasl;")
	assert.NotContains(t, got, "<sup>")
}

func TestBlock_Hero(t *testing.T) {
	r := newTestRenderer(t)

	h, err := r.Block(core.Block{
		Type: core.BlockHero,
		Key:  "k1",
		Hero: &core.HeroBlock{
			Heading:    "Guarding <what> matters",
			Subheading: "Licensed officers",
			CTA:        &core.Link{Label: "Request a quote", Href: "/security-request"},
		},
	})
	require.NoError(t, err)

	out := string(h)
	assert.Contains(t, out, `id="k1"`)
	assert.Contains(t, out, "Guarding &lt;what&gt; matters")
	assert.Contains(t, out, `href="/security-request"`)
	assert.NotContains(t, out, "hero-image")
}

func TestBlock_GridRowDefaultsColumns(t *testing.T) {
	r := newTestRenderer(t)

	h, err := r.Block(core.Block{
		Type: core.BlockGridRow,
		Key:  "g",
		GridRow: &core.GridRowBlock{
			Items: []core.GridItem{{Title: "Mobile patrol", Body: "Marked *vehicles*"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(h), "cols-3")
	assert.Contains(t, string(h), "<em>vehicles</em>")
}

func TestBlock_CalloutToneIsConstrained(t *testing.T) {
	r := newTestRenderer(t)

	h, err := r.Block(core.Block{
		Type:    core.BlockCallout,
		Callout: &core.CalloutBlock{Tone: `x" onmouseover="y`, Body: "Note"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(h), "tone-info")
}

func TestBlock_UnknownAndIncompleteRenderNothing(t *testing.T) {
	r := newTestRenderer(t)

	h, err := r.Block(core.Block{Type: "videoEmbed", Key: "v"})
	require.NoError(t, err)
	assert.Empty(t, h)

	h, err = r.Block(core.Block{Type: core.BlockRichText, Key: "r"})
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestRenderPage(t *testing.T) {
	r := newTestRenderer(t)

	page := &core.Page{
		Title:       "Services",
		Slug:        "services",
		Description: "What we do",
		Blocks: []core.Block{
			{Type: core.BlockRichText, Key: "a", RichText: &core.RichTextBlock{Body: "First"}},
			{Type: core.BlockCTA, Key: "b", CTA: &core.CTABlock{
				Heading: "Talk to us",
				Link:    core.Link{Label: "Contact", Href: "/contact"},
			}},
		},
	}
	settings := &core.Settings{
		SiteName:   "Ironwatch",
		Navigation: []core.NavItem{{Label: "Home", Href: "/"}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, page, settings))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Services | Ironwatch</title>")
	assert.Contains(t, out, `<meta name="description" content="What we do">`)
	assert.Less(t, strings.Index(out, "First"), strings.Index(out, "Talk to us"))
}

func TestRenderExperience(t *testing.T) {
	r := newTestRenderer(t)

	sc := &core.Scene{
		Slug:  "town",
		Title: "Town",
		Kind:  core.SceneKindMain,
		Markers: []core.Marker{
			{ID: "harbor", Title: "Harbor", Body: "Dock *patrols*"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, r.RenderExperience(&buf, sc, nil, "/ws/experience?scene=town"))

	out := buf.String()
	assert.Contains(t, out, `data-marker="harbor"`)
	assert.Contains(t, out, `"slug":"town"`)
	assert.Contains(t, out, "/static/experience.js")
}
