package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ironwatch/site/internal/util"
	"github.com/ironwatch/site/pkg/core"
)

const descriptionLength = 160

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	slug := util.NormalizeSlug(mux.Vars(r)["slug"])
	if slug == "" {
		slug = s.deps.HomeSlug
	}
	if !util.ValidSlug(slug) {
		http.NotFound(w, r)
		return
	}

	view, err := s.deps.Content.PageWithSettings(r.Context(), slug)
	if err != nil {
		s.contentError(w, "page "+slug, err)
		return
	}
	if view.Page.Description == "" {
		view.Page.Description = util.Excerpt(summary(view.Page), descriptionLength)
	}

	var buf bytes.Buffer
	if err := s.deps.Renderer.RenderPage(&buf, view.Page, view.Settings); err != nil {
		s.logger.Error("rendering page", "slug", slug, "error", err)
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

func (s *Server) handleExperience(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := util.NormalizeSlug(mux.Vars(r)["scene"])

	var (
		sc  *core.Scene
		err error
	)
	if slug == "" {
		sc, err = s.deps.Scenes.Main(ctx)
	} else {
		sc, err = s.deps.Scenes.Scene(ctx, slug)
	}
	if err != nil {
		s.contentError(w, "scene "+slug, err)
		return
	}

	settings := s.settings(ctx)
	var buf bytes.Buffer
	if err := s.deps.Renderer.RenderExperience(&buf, sc, settings, socketURL(r, sc.Slug)); err != nil {
		s.logger.Error("rendering experience", "scene", sc.Slug, "error", err)
		http.Error(w, "experience unavailable", http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

// settings loads site settings for a shell. A failure renders the shell
// without them.
func (s *Server) settings(ctx context.Context) *core.Settings {
	settings, err := s.deps.Content.Settings(ctx)
	if err != nil {
		s.logger.Warn("site settings unavailable", "error", err)
		return nil
	}
	return settings
}

func (s *Server) contentError(w http.ResponseWriter, what string, err error) {
	status := contentStatus(err)
	if status != http.StatusNotFound {
		s.logger.Error("fetching content", "what", what, "error", err)
	}
	http.Error(w, http.StatusText(status), status)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// socketURL is the absolute experience WebSocket URL for the request's host.
func socketURL(r *http.Request, slug string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return util.HTTPToWS(scheme+"://"+r.Host) + "/ws/experience?scene=" + slug
}

// summary picks the first prose of a page for its meta description.
func summary(p *core.Page) string {
	for _, b := range p.Blocks {
		switch {
		case b.Hero != nil && b.Hero.Subheading != "":
			return b.Hero.Subheading
		case b.RichText != nil && b.RichText.Body != "":
			return b.RichText.Body
		case b.Callout != nil && b.Callout.Body != "":
			return b.Callout.Body
		}
	}
	return ""
}
