package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline-server/internal/platform/config"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/util/retry"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	ACL         string
}

// fakeS3 accepts PUT object requests and records what it saw.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		ACL:         r.Header.Get("X-Amz-Acl"),
	})
	status := f.status
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message><Resource>` + r.URL.Path + `</Resource><RequestId>1</RequestId></Error>`))
		return
	}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func newS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3(config.S3Config{
		Endpoint:        srv.URL,
		Bucket:          "media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
	}, Dependencies{Retry: retry.Policy{MaxAttempts: 2}})
	require.NoError(t, err)
	return store
}

func TestS3PutSendsContentTypeAndACL(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(t, fake)

	require.NoError(t, store.Put(context.Background(), "images/photo_s.webp", []byte("RIFF....WEBP")))
	require.NoError(t, store.Put(context.Background(), "images/photo_max.png", []byte("png")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 2)
	assert.Equal(t, recordedRequest{
		Method:      http.MethodPut,
		Path:        "/media/images/photo_s.webp",
		ContentType: "image/webp",
		ACL:         "public-read",
	}, fake.requests[0])
	assert.Equal(t, "image/png", fake.requests[1].ContentType)
}

func TestS3PutClientErrorNotRetried(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	store := newS3Store(t, fake)

	err := store.Put(context.Background(), "images/photo_s.jpg", []byte("jpg"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindUpload))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.requests, 1)
}

func TestS3URL(t *testing.T) {
	store, err := NewS3(config.S3Config{Endpoint: "https://s3.example.com/", Bucket: "media"}, Dependencies{})
	require.NoError(t, err)

	assert.Equal(t, "https://s3.example.com/media/images/photo_m.jpg", store.URL("images/photo_m.jpg"))
	assert.Equal(t, "https://s3.example.com/media/images/My%2520Photo_m.jpg", store.URL("images/My%20Photo_m.jpg"))
	assert.Equal(t, DriverS3, store.Name())
}

func TestNewS3Validation(t *testing.T) {
	cases := []config.S3Config{
		{Endpoint: "https://s3.example.com"},
		{Endpoint: "s3.example.com", Bucket: "media"},
		{Endpoint: "ftp://s3.example.com", Bucket: "media"},
	}
	for _, cfg := range cases {
		_, err := NewS3(cfg, Dependencies{})
		require.Error(t, err)
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
	}
}
