// Package blocks renders CMS content blocks and page shells to HTML.
package blocks

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/ironwatch/site/pkg/core"
)

//go:embed templates/*.html
var templateFS embed.FS

// rendered is the set of block types with a template.
var rendered = map[string]bool{
	core.BlockHero:     true,
	core.BlockSplitRow: true,
	core.BlockGridRow:  true,
	core.BlockCarousel: true,
	core.BlockCallout:  true,
	core.BlockRichText: true,
	core.BlockTeamGrid: true,
	core.BlockCTA:      true,
}

// Renderer turns typed documents into markup. It is safe for concurrent use.
type Renderer struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewRenderer parses the embedded templates.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("site").Funcs(template.FuncMap{
		"markdown": Markdown,
		"columns":  columns,
		"tone":     tone,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, logger: logger}, nil
}

// Markdown converts CMS markdown to HTML. Raw HTML in the source is dropped
// and fractions such as 24/7 are left as written.
func Markdown(src string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags&^mdhtml.SmartypantsFractions | mdhtml.SkipHTML | mdhtml.HrefTargetBlank,
	})
	return template.HTML(markdown.ToHTML([]byte(src), p, r))
}

func columns(n int) int {
	switch {
	case n <= 0:
		return 3
	case n > 4:
		return 4
	}
	return n
}

func tone(t string) string {
	switch t {
	case "info", "warning", "success":
		return t
	}
	return "info"
}

// Block renders one block. Unknown types and blocks missing their payload
// render as nothing.
func (r *Renderer) Block(b core.Block) (template.HTML, error) {
	if !rendered[b.Type] {
		r.logger.Debug("skipping unknown block type", "type", b.Type, "key", b.Key)
		return "", nil
	}
	if err := b.Validate(); err != nil {
		r.logger.Debug("skipping incomplete block", "type", b.Type, "key", b.Key, "error", err)
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, b.Type, b); err != nil {
		return "", fmt.Errorf("rendering %s block %s: %w", b.Type, b.Key, err)
	}
	return template.HTML(buf.String()), nil
}

// Blocks renders blocks in order.
func (r *Renderer) Blocks(bs []core.Block) (template.HTML, error) {
	var sb strings.Builder
	for _, b := range bs {
		h, err := r.Block(b)
		if err != nil {
			return "", err
		}
		sb.WriteString(string(h))
	}
	return template.HTML(sb.String()), nil
}

type layoutData struct {
	Title       string
	Description string
	Settings    *core.Settings
	Body        template.HTML
	Scripts     []string
}

type experienceData struct {
	Scene  *core.Scene
	Socket string
}

// RenderPage writes a complete HTML document for page.
func (r *Renderer) RenderPage(w io.Writer, page *core.Page, settings *core.Settings) error {
	body, err := r.Blocks(page.Blocks)
	if err != nil {
		return err
	}
	return r.layout(w, layoutData{
		Title:       page.Title,
		Description: page.Description,
		Settings:    orEmpty(settings),
		Body:        body,
	})
}

// RenderExperience writes the shell for the 3D experience of a scene. The
// browser script connects to socket for camera frames.
func (r *Renderer) RenderExperience(w io.Writer, sc *core.Scene, settings *core.Settings, socket string) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "experience", experienceData{Scene: sc, Socket: socket}); err != nil {
		return fmt.Errorf("rendering experience %s: %w", sc.Slug, err)
	}
	return r.layout(w, layoutData{
		Title:    sc.Title,
		Settings: orEmpty(settings),
		Body:     template.HTML(buf.String()),
		Scripts:  []string{"/static/experience.js"},
	})
}

func (r *Renderer) layout(w io.Writer, data layoutData) error {
	if err := r.tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		return fmt.Errorf("rendering layout: %w", err)
	}
	return nil
}

func orEmpty(s *core.Settings) *core.Settings {
	if s == nil {
		return &core.Settings{}
	}
	return s
}
