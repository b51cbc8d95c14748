package image

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"

	platformerrors "image-pipeline-server/internal/platform/errors"
)

// NamingStrategy controls how source URLs map to storage keys.
type NamingStrategy string

const (
	// NamingBasename uses only the file name, so equal names from different
	// hosts share keys.
	NamingBasename NamingStrategy = "basename"
	// NamingHashed appends a short digest of the canonical URL to the name.
	NamingHashed NamingStrategy = "hashed"

	hashLength  = 12
	defaultName = "image"
	defaultExt  = "jpg"
)

// CanonicalURL strips query and fragment from an absolute http(s) URL.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", platformerrors.New(platformerrors.KindValidation, "image.canonical", msgInvalidURL)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

// SourceName splits the last path segment of a URL into base name and
// lower-cased extension. Query and fragment are ignored.
func SourceName(raw string) (name, ext string) {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		// escaped form so an encoded "/" stays inside the last segment
		p = u.EscapedPath()
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	base := path.Base(p)
	if base == "." || base == "/" {
		base = ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	ext = path.Ext(base)
	name = strings.TrimSuffix(base, ext)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if name == "" {
		name = defaultName
	}
	return name, ext
}

// EncodeName percent-encodes every byte outside [A-Za-z0-9-_.~], which also
// makes the name safe as a single file system path segment.
func EncodeName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

// KeyDeriver builds storage keys under Directory.
type KeyDeriver struct {
	Directory string
	Strategy  NamingStrategy
}

func NewKeyDeriver(directory string, strategy NamingStrategy) KeyDeriver {
	if strategy == "" {
		strategy = NamingHashed
	}
	return KeyDeriver{Directory: strings.Trim(directory, "/"), Strategy: strategy}
}

// DeriveKey returns "{dir}/{name}_{label}.{ext}", or "{dir}/{name}.{ext}" when
// label is empty. An empty ext falls back to the source extension, then jpg.
func (d KeyDeriver) DeriveKey(sourceURL, label, ext string) string {
	name, srcExt := SourceName(sourceURL)
	if ext == "" {
		ext = srcExt
	}
	if ext == "" {
		ext = defaultExt
	}

	stem := EncodeName(name)
	if d.Strategy == NamingHashed {
		stem += "-" + urlDigest(sourceURL)
	}
	if label != "" {
		stem += "_" + label
	}

	file := stem + "." + ext
	if d.Directory == "" {
		return file
	}
	return d.Directory + "/" + file
}

func urlDigest(raw string) string {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:hashLength]
}
