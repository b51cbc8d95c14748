package artifact

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// Store persists derivative artifacts under slash-separated keys. Put
// overwrites any existing object with the same key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	URL(key string) string
	Name() string
}

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ContentTypeFor infers the MIME type from the key's extension, defaulting to image/jpeg.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "image/jpeg"
}

// escapeKey path-escapes every segment so keys holding literal '%' round-trip.
func escapeKey(key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + escapeKey(key)
}
