package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/pkg/core"
)

// fakeStore answers query requests by the document type named in the query.
type fakeStore struct {
	results  map[string]string
	queries  atomic.Int32
	lastAuth atomic.Value
}

func (f *fakeStore) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2024-01-01/data/query/production", func(w http.ResponseWriter, r *http.Request) {
		f.queries.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		name := queryName(r.URL.Query().Get("query"))
		if name == "page" && r.URL.Query().Get("$slug") == `"missing"` {
			_, _ = w.Write([]byte(`{"result": null, "ms": 1}`))
			return
		}
		result, ok := f.results[name]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"description": "unknown type"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result": ` + result + `, "ms": 3}`))
	})
	mux.HandleFunc("/v2024-01-01/data/mutate/production", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mutations []map[string]json.RawMessage `json:"mutations"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Mutations, 1)
		_, _ = w.Write([]byte(`{"transactionId": "tx1", "results": [{"id": "doc1", "operation": "create"}]}`))
	})
	mux.HandleFunc("/v2024-01-01/assets/files/production", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		assert.Equal(t, "plan.pdf", r.URL.Query().Get("filename"))
		assert.Equal(t, "%PDF", string(data))
		_, _ = w.Write([]byte(`{"document": {"_id": "file-abc", "url": "https://cdn.example/plan.pdf"}}`))
	})
	return mux
}

func newTestClient(t *testing.T, results map[string]string, opts ...Option) (*Client, *fakeStore) {
	t.Helper()
	store := &fakeStore{results: results}
	server := httptest.NewServer(store.handler(t))
	t.Cleanup(server.Close)

	c := New(Config{
		BaseURL:    server.URL + "/",
		Dataset:    "production",
		APIVersion: "v2024-01-01",
		Token:      "sk-test",
		TTL:        time.Minute,
	}, opts...)
	return c, store
}

const pageJSON = `{
  "_id": "p1",
  "title": "Services",
  "slug": "services",
  "blocks": [
    {"_type": "hero", "_key": "a", "heading": "Guarding you can trust"},
    {"_type": "richText", "_key": "b", "body": "We patrol **every** night."},
    {"_type": "mysteryBlock", "_key": "c", "foo": 1}
  ]
}`

func TestPageBySlug(t *testing.T) {
	c, store := newTestClient(t, map[string]string{"page": pageJSON})

	p, err := c.PageBySlug(context.Background(), "services")
	require.NoError(t, err)

	want := &core.Page{
		ID:    "p1",
		Title: "Services",
		Slug:  "services",
		Blocks: []core.Block{
			{Type: core.BlockHero, Key: "a", Hero: &core.HeroBlock{Heading: "Guarding you can trust"}},
			{Type: core.BlockRichText, Key: "b", RichText: &core.RichTextBlock{Body: "We patrol **every** night."}},
			{Type: "mysteryBlock", Key: "c"},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Bearer sk-test", store.lastAuth.Load())
}

func TestPageBySlug_NotFound(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"page": pageJSON})

	_, err := c.PageBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPageBySlug_Invalid(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"page": `{"_id": "p2", "slug": "about", "title": "About", "blocks": [{"_type": "hero", "_key": "x"}]}`,
	})

	_, err := c.PageBySlug(context.Background(), "about")
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "heading")
}

func TestQuery_APIError(t *testing.T) {
	c, _ := newTestClient(t, nil)

	_, err := c.Settings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestScenes(t *testing.T) {
	scene := `{
	  "slug": "town", "title": "Town", "kind": "main",
	  "defaultView": {"position": {"x": 0, "y": 400, "z": 600}, "target": {"x": 0, "y": 0, "z": 0}},
	  "models": [{"url": "/models/bank.glb"}],
	  "markers": [{"id": "bank", "title": "Bank", "position": {"x": 1, "y": 2, "z": 3}, "route": "/experience/bank"}]
	}`
	c, _ := newTestClient(t, map[string]string{"scene": scene})

	main, err := c.MainScene(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.SceneKindMain, main.Kind)

	sc, err := c.SceneBySlug(context.Background(), "town")
	require.NoError(t, err)
	m, ok := sc.Marker("bank")
	require.True(t, ok)
	assert.Equal(t, "/experience/bank", m.Route)
	assert.Nil(t, m.Camera)
}

func TestTeamMembers_RejectsNameless(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"teamMember": `[{"name": "Ada", "role": "Director"}, {"role": "Guard"}]`,
	})

	_, err := c.TeamMembers(context.Background())
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestPageWithSettings(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"page":     pageJSON,
		"settings": `{"siteName": "Ironwatch", "navigation": [{"label": "Home", "href": "/"}]}`,
	})

	view, err := c.PageWithSettings(context.Background(), "services")
	require.NoError(t, err)
	assert.Equal(t, "services", view.Page.Slug)
	assert.Equal(t, "Ironwatch", view.Settings.SiteName)
}

func TestQuery_CachedResponses(t *testing.T) {
	c, store := newTestClient(t, map[string]string{"page": pageJSON}, WithCache(NewFreeCache(1)))

	for i := 0; i < 3; i++ {
		_, err := c.PageBySlug(context.Background(), "services")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), store.queries.Load())
	hits, misses := c.CacheStats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestQuery_CacheKeyIncludesParams(t *testing.T) {
	c, store := newTestClient(t, map[string]string{"page": pageJSON}, WithCache(NewFreeCache(1)))

	_, err := c.PageBySlug(context.Background(), "services")
	require.NoError(t, err)
	_, err = c.PageBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(2), store.queries.Load())
}

func TestQuery_TooLargeToCacheIsServed(t *testing.T) {
	body := strings.Repeat("Patrols every night. ", 2000)
	big := `{"_id": "p1", "title": "Services", "slug": "services", "blocks": [{"_type": "richText", "_key": "b", "body": "` + body + `"}]}`
	c, store := newTestClient(t, map[string]string{"page": big}, WithCache(NewFreeCache(1)))

	for i := 0; i < 2; i++ {
		page, err := c.PageBySlug(context.Background(), "services")
		require.NoError(t, err)
		assert.Equal(t, "Services", page.Title)
	}
	assert.Equal(t, int32(2), store.queries.Load())
}

func TestHealthcheck_BypassesCache(t *testing.T) {
	c, store := newTestClient(t, map[string]string{"settings": "1"}, WithCache(NewFreeCache(1)))

	require.NoError(t, c.Healthcheck(context.Background()))
	require.NoError(t, c.Healthcheck(context.Background()))
	assert.Equal(t, int32(2), store.queries.Load())

	hits, misses := c.CacheStats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestHealthcheck_Down(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{}, WithCache(NewFreeCache(1)))
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestQuery_Observer(t *testing.T) {
	var names []string
	var cachedCount int
	obs := func(name string, _ time.Duration, cached bool, _ error) {
		names = append(names, name)
		if cached {
			cachedCount++
		}
	}
	c, _ := newTestClient(t, map[string]string{"settings": `{"siteName": "Ironwatch"}`},
		WithCache(NewFreeCache(1)), WithObserver(obs))

	_, _ = c.Settings(context.Background())
	_, _ = c.Settings(context.Background())

	assert.Equal(t, []string{"settings", "settings"}, names)
	assert.Equal(t, 1, cachedCount)
}

func TestMutate(t *testing.T) {
	c, _ := newTestClient(t, nil)

	res, err := c.Mutate(context.Background(), []Mutation{Create(map[string]any{"_type": "securityRequest"})})
	require.NoError(t, err)
	assert.Equal(t, "tx1", res.TransactionID)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "doc1", res.Results[0].ID)
}

func TestUploadAsset(t *testing.T) {
	c, _ := newTestClient(t, nil)

	a, err := c.UploadAsset(context.Background(), "plan.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "file-abc", a.ID)
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "page", queryName(pageBySlugQuery))
	assert.Equal(t, "teamMember", queryName(teamMembersQuery))
	assert.Equal(t, "query", queryName("count(*)"))
}

func TestNotFoundIsSentinel(t *testing.T) {
	err := errors.Join(errors.New("x"), ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}
