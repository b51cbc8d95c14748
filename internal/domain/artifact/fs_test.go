package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline-server/internal/platform/config"
	platformerrors "image-pipeline-server/internal/platform/errors"
)

func newFSStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFS(config.FSConfig{
		Root:          filepath.Join(t.TempDir(), "compressed"),
		PublicBaseURL: "http://localhost:3000/compressed/",
	}, nil)
	require.NoError(t, err)
	return store
}

func TestFSPutAndOverwrite(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "images/photo_s.jpg", []byte("v1")))
	require.NoError(t, store.Put(ctx, "images/photo_s.jpg", []byte("v2")))

	data, err := store.Get("images/photo_s.jpg")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(filepath.Join(store.Root(), "images"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "photo_s.jpg", entries[0].Name())

	info, err := os.Stat(filepath.Join(store.Root(), "images", "photo_s.jpg"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFSURLEscapesSegments(t *testing.T) {
	store := newFSStore(t)
	assert.Equal(t, "http://localhost:3000/compressed/images/photo_s.jpg", store.URL("images/photo_s.jpg"))
	assert.Equal(t, "http://localhost:3000/compressed/images/My%2520Photo_s.jpg", store.URL("images/My%20Photo_s.jpg"))
}

func TestFSRejectsEscapingKeys(t *testing.T) {
	store := newFSStore(t)
	for _, key := range []string{"", "../outside.jpg", "images/../../outside.jpg", ".."} {
		err := store.Put(context.Background(), key, []byte("x"))
		require.Error(t, err, key)
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage), key)
	}
}

func TestFSPutCancelled(t *testing.T) {
	store := newFSStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, store.Put(ctx, "images/a.jpg", []byte("x")))
}

func TestNewFSRequiresRoot(t *testing.T) {
	_, err := NewFS(config.FSConfig{}, nil)
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"a/b.jpg":  "image/jpeg",
		"a/b.JPEG": "image/jpeg",
		"a/b.png":  "image/png",
		"a/b.gif":  "image/gif",
		"a/b.webp": "image/webp",
		"a/b.tiff": "image/jpeg",
		"a/noext":  "image/jpeg",
	}
	for key, want := range cases {
		assert.Equal(t, want, ContentTypeFor(key), key)
	}
}
