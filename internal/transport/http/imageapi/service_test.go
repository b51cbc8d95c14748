package imageapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline-server/internal/domain/artifact"
	"image-pipeline-server/internal/domain/extract"
	domainimage "image-pipeline-server/internal/domain/image"
	"image-pipeline-server/internal/domain/manifest"
	"image-pipeline-server/internal/domain/scrape"
	"image-pipeline-server/internal/platform/config"
	testutil "image-pipeline-server/internal/platform/testing"
	httptransport "image-pipeline-server/internal/transport/http"
	"image-pipeline-server/internal/util/retry"
)

type fixture struct {
	engine    *gin.Engine
	manifests manifest.Store
	upstream  *testutil.ImageServer
}

func newFixture(t *testing.T, assets map[string]testutil.Asset) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testutil.SetupTestConfig(t)
	store, err := artifact.NewFS(config.FSConfig{Root: cfg.Storage.FS.Root, PublicBaseURL: "http://cdn.test/compressed"}, nil)
	require.NoError(t, err)

	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Fetcher: domainimage.NewHTTPFetcher(domainimage.FetcherOptions{
			Retry: retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		}),
		Store:    store,
		Keys:     domainimage.NewKeyDeriver("images", domainimage.NamingBasename),
		Variants: []domainimage.VariantSpec{{Label: "s", Width: 20, Quality: 80}},
	})
	require.NoError(t, err)

	manifests := manifest.NewMemory(config.ManifestConfig{})
	t.Cleanup(func() { _ = manifests.Close(context.Background()) })

	svc, err := NewService(Options{
		Pipeline:   pipeline,
		JSONSource: extract.NewSource(nil),
		Scraper:    scrape.New(nil, nil),
		Manifests:  manifests,
	})
	require.NoError(t, err)

	engine := gin.New()
	require.NoError(t, svc.Register(context.Background(), &engine.RouterGroup))

	return &fixture{engine: engine, manifests: manifests, upstream: testutil.NewImageServer(t, assets)}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func jpegAsset(t *testing.T) testutil.Asset {
	return testutil.Asset{ContentType: "image/jpeg", Body: testutil.EncodeTestImage(t, "jpeg", 40, 30)}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestCompress(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{"/cat.jpg": jpegAsset(t)})

	rec := f.do(t, http.MethodGet, "/compress?url="+f.upstream.URL+"/cat.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	outputs := decodeBody[map[string]string](t, rec)
	assert.Equal(t, map[string]string{
		"max":    "http://cdn.test/compressed/images/cat_max.jpg",
		"s":      "http://cdn.test/compressed/images/cat_s.jpg",
		"s_webp": "http://cdn.test/compressed/images/cat_s.webp",
	}, outputs)
}

func TestCompressUnderAPIPrefix(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{"/cat.jpg": jpegAsset(t)})

	rec := f.do(t, http.MethodGet, "/api/compress?url="+f.upstream.URL+"/cat.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[map[string]string](t, rec), 3)
}

func TestCompressErrors(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{
		"/broken.jpg": {ContentType: "image/jpeg", Body: []byte("nope")},
	})

	cases := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{"missing url", "/compress", http.StatusBadRequest, "URL is required"},
		{"malformed url", "/compress?url=not-a-url", http.StatusBadRequest, "Invalid URL format"},
		{"not found upstream", "/compress?url=" + f.upstream.URL + "/none.jpg", http.StatusInternalServerError, ""},
		{"undecodable", "/compress?url=" + f.upstream.URL + "/broken.jpg", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tc.target, "")
			require.Equal(t, tc.status, rec.Code)
			body := decodeBody[httptransport.ErrorBody](t, rec)
			assert.Equal(t, tc.status, body.Status)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Message)
			} else {
				assert.NotEmpty(t, body.Message)
			}
		})
	}
}

func TestBulkTransform(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{"/a.jpg": jpegAsset(t), "/b.jpg": jpegAsset(t)})

	payload := `{"urls":["` + f.upstream.URL + `/a.jpg","bad","` + f.upstream.URL + `/b.jpg"]}`
	rec := f.do(t, http.MethodPost, "/bulk-image-transform", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decodeBody[domainimage.BatchReport](t, rec)
	require.Len(t, report.Items, 3)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Items[0].OK)
	assert.False(t, report.Items[1].OK)
	assert.Equal(t, "Invalid URL format", report.Items[1].Error)
	assert.Equal(t, "http://cdn.test/compressed/images/b_s.jpg", report.Items[2].Outputs["s"])
}

func TestBulkTransformRejectsBadBody(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{`{}`, `{"urls":"x"}`, `not json`} {
		rec := f.do(t, http.MethodPost, "/bulk-image-transform", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "URLs are required and should be an array", decodeBody[httptransport.ErrorBody](t, rec).Message)
	}
}

func TestTransformJSON(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{"/a.jpg": jpegAsset(t), "/b.jpg": jpegAsset(t)})
	a, b := f.upstream.URL+"/a.jpg", f.upstream.URL+"/b.jpg"
	f.upstream.Set("/feed.json", testutil.Asset{
		ContentType: "application/json",
		Body:        []byte(`{"cover":"` + a + `","items":[{"cover":"` + b + `"},{"cover":"` + a + `"}],"gallery":["` + b + `"]}`),
	})

	target := "/image-transform-json?keys=cover,gallery&url=" + url.QueryEscape(f.upstream.URL+"/feed.json?page=1")
	rec := f.do(t, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []string{a, b}, decodeBody[[]string](t, rec))
	assert.Equal(t, 1, f.upstream.Hits(http.MethodGet, "/a.jpg"))
}

func TestTransformJSONErrors(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{
		"/page.html": {ContentType: "text/html", Body: []byte("<html></html>")},
	})

	rec := f.do(t, http.MethodGet, "/image-transform-json?keys=a", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/image-transform-json?url="+f.upstream.URL+"/page.html", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "keys are required", decodeBody[httptransport.ErrorBody](t, rec).Message)

	rec = f.do(t, http.MethodGet, "/image-transform-json?url="+f.upstream.URL+"/page.html&keys=a", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodGet, "/image-transform-json?url=not-a-url&keys=a", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid URL format", decodeBody[httptransport.ErrorBody](t, rec).Message)
}

func TestTransformJSONWithoutMatches(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{
		"/empty.json": {ContentType: "application/json", Body: []byte(`{"other":1}`)},
	})

	rec := f.do(t, http.MethodGet, "/image-transform-json?url="+f.upstream.URL+"/empty.json&keys=cover", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestScrapeImages(t *testing.T) {
	f := newFixture(t, map[string]testutil.Asset{"/img/a.jpg": jpegAsset(t)})
	f.upstream.Set("/gallery", testutil.Asset{
		ContentType: "text/html",
		Body:        []byte(`<html><body><img src="/img/a.jpg?w=1"><img src="data:image/png;base64,AAAA"></body></html>`),
	})

	rec := f.do(t, http.MethodPost, "/scrape-images", `{"url":"`+f.upstream.URL+`/gallery"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[ScrapeResponse](t, rec)
	assert.Equal(t, "COMPRESSED", resp.Result)
	require.NotNil(t, resp.Report)
	require.Len(t, resp.Report.Items, 1)
	assert.Equal(t, f.upstream.URL+"/img/a.jpg", resp.Report.Items[0].URL)
	assert.True(t, resp.Report.Items[0].OK)
}

func TestScrapeImagesErrors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/scrape-images", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/scrape-images", `{"url":"ftp://x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid URL format", decodeBody[httptransport.ErrorBody](t, rec).Message)

	rec = f.do(t, http.MethodPost, "/scrape-images", `{"url":"`+f.upstream.URL+`/missing"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestManifestLookup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.manifests.SaveImage(ctx, manifest.ImageRecord{
		SourceURL: "https://example.com/a.jpg",
		Stage:     "complete",
		Outputs:   map[string]string{"s": "http://cdn.test/a_s.jpg"},
	}))
	require.NoError(t, f.manifests.SaveBatch(ctx, manifest.BatchRecord{ID: "b-1", Succeeded: 1}))

	rec := f.do(t, http.MethodGet, "/api/manifests?url=https://example.com/a.jpg?utm=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[struct {
		Success bool                 `json:"success"`
		Data    manifest.ImageRecord `json:"data"`
	}](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "http://cdn.test/a_s.jpg", resp.Data.Outputs["s"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/manifests?url=https://example.com/b.jpg", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/manifests?url=nope", "").Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/batches/b-1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/batches/b-2", "").Code)
}
