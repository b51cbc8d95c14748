package image

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline-server/internal/domain/eventbus"
	testutil "image-pipeline-server/internal/platform/testing"
)

func TestProcessBatchIsolatesFailures(t *testing.T) {
	assets := map[string]testutil.Asset{}
	for _, name := range []string{"/a.jpg", "/b.jpg", "/c.png"} {
		format := "jpeg"
		if name == "/c.png" {
			format = "png"
		}
		assets[name] = testutil.Asset{ContentType: "image/" + format, Body: testutil.EncodeTestImage(t, format, 200, 100)}
	}
	srv := testutil.NewImageServer(t, assets)

	bus := eventbus.New()
	var completed []eventbus.BatchCompletedEvent
	require.NoError(t, bus.Subscribe(eventbus.EventBatchCompleted, func(evt eventbus.BatchCompletedEvent) {
		completed = append(completed, evt)
	}))

	store := newMemStore()
	p := newTestPipeline(t, store, func(o *Options) { o.Bus = bus })

	urls := []string{srv.URL + "/a.jpg", "not-a-url", srv.URL + "/b.jpg", srv.URL + "/c.png"}
	report := p.ProcessBatch(context.Background(), urls)

	require.Len(t, report.Items, len(urls))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	for i, item := range report.Items {
		assert.Equal(t, urls[i], item.URL)
		if i == 1 {
			assert.False(t, item.OK)
			assert.Equal(t, StageValidating, item.Stage)
			assert.Equal(t, "validation", item.Kind)
			assert.Equal(t, "Invalid URL format", item.Error)
			assert.Empty(t, item.Outputs)
			continue
		}
		assert.True(t, item.OK, item.Error)
		assert.Equal(t, StageComplete, item.Stage)
		assert.Len(t, item.Outputs, len(OutputIDs(DefaultVariants())))
	}

	require.Len(t, completed, 1)
	assert.Equal(t, report.ID, completed[0].BatchID)
	assert.Equal(t, 3, completed[0].Succeeded)
	assert.Len(t, completed[0].Items, len(urls))
}

func TestProcessBatchDeduplicatesCanonicalURLs(t *testing.T) {
	srv := testutil.NewImageServer(t, map[string]testutil.Asset{
		"/a.jpg": {ContentType: "image/jpeg", Body: testutil.EncodeTestImage(t, "jpeg", 100, 100)},
	})
	p := newTestPipeline(t, newMemStore(), func(o *Options) {
		o.Variants = []VariantSpec{{Label: "s", Width: 50, Quality: 80}}
	})

	urls := []string{srv.URL + "/a.jpg", srv.URL + "/a.jpg?utm=1", srv.URL + "/a.jpg"}
	report := p.ProcessBatch(context.Background(), urls)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, srv.Hits("GET", "/a.jpg"))
	for i, item := range report.Items {
		assert.Equal(t, urls[i], item.URL)
		assert.Equal(t, report.Items[0].Outputs, item.Outputs)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	p := newTestPipeline(t, newMemStore(), nil)
	report := p.ProcessBatch(context.Background(), nil)
	assert.Empty(t, report.Items)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)
}

func TestProcessBatchAllFail(t *testing.T) {
	srv := testutil.NewImageServer(t, map[string]testutil.Asset{})
	p := newTestPipeline(t, newMemStore(), nil)

	report := p.ProcessBatch(context.Background(), []string{srv.URL + "/x.jpg", srv.URL + "/y.jpg"})
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	for _, item := range report.Items {
		assert.Equal(t, StageFetching, item.Stage)
		assert.Equal(t, "fetch", item.Kind)
	}
}
