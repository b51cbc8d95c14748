package image

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp"

	platformerrors "image-pipeline-server/internal/platform/errors"
)

// codecExts maps source extensions to the codec used for FormatOriginal.
var codecExts = map[string]imaging.Format{
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

// decodedExts maps image.DecodeConfig format names to file extensions.
var decodedExts = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

// Source is a decoded image shared read-only by every variant render.
type Source struct {
	Image  image.Image
	Format string
	Width  int
	Height int
}

// OutputExt returns the extension used for original-format artifacts: the URL
// extension when it names a supported codec, otherwise the decoded format's.
func (s *Source) OutputExt(urlExt string) string {
	urlExt = strings.ToLower(urlExt)
	if _, ok := codecExts[urlExt]; ok || urlExt == "webp" {
		return urlExt
	}
	if ext, ok := decodedExts[s.Format]; ok {
		return ext
	}
	return defaultExt
}

// DefaultMaxSourcePixels bounds the decoded size of a source image.
const DefaultMaxSourcePixels int64 = 100_000_000

// Transformer decodes, resizes and encodes images. Sources larger than
// maxPixels are rejected before any pixel buffer is allocated.
type Transformer struct {
	maxPixels int64
}

func NewTransformer() *Transformer {
	return NewTransformerWithLimit(DefaultMaxSourcePixels)
}

// NewTransformerWithLimit falls back to DefaultMaxSourcePixels when
// maxPixels is not positive.
func NewTransformerWithLimit(maxPixels int64) *Transformer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxSourcePixels
	}
	return &Transformer{maxPixels: maxPixels}
}

// Decode parses data into a Source. Failures are compression errors.
func (t *Transformer) Decode(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, platformerrors.New(platformerrors.KindCompression, "image.decode", "empty image payload")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCompression, "image.decode", "unsupported or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, platformerrors.New(platformerrors.KindCompression, "image.decode",
			fmt.Sprintf("invalid image dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > t.maxPixels {
		return nil, platformerrors.New(platformerrors.KindCompression, "image.decode",
			fmt.Sprintf("image dimensions %dx%d exceed the %d pixel limit", cfg.Width, cfg.Height, t.maxPixels))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCompression, "image.decode", "failed to decode "+format, err)
	}

	b := img.Bounds()
	return &Source{Image: img, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// Transform decodes data and renders one output.
func (t *Transformer) Transform(data []byte, opts TransformOptions) ([]byte, error) {
	src, err := t.Decode(data)
	if err != nil {
		return nil, err
	}
	if opts.SourceExt == "" {
		opts.SourceExt = src.OutputExt("")
	}
	return t.Render(src, opts)
}

// Render resizes src proportionally to opts.Width and encodes it. src is not modified.
func (t *Transformer) Render(src *Source, opts TransformOptions) ([]byte, error) {
	img := src.Image
	if opts.Width > 0 && opts.Width != src.Width {
		img = imaging.Resize(src.Image, opts.Width, 0, imaging.Lanczos)
	}

	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	quality = clampQuality(quality)

	var buf bytes.Buffer
	if err := encode(&buf, img, opts.Format, opts.SourceExt, quality); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCompression, "image.encode", "failed to encode image", err)
	}
	return buf.Bytes(), nil
}

func encode(w io.Writer, img image.Image, format Format, sourceExt string, quality int) error {
	ext := strings.ToLower(sourceExt)
	if format == FormatWebP || (format == FormatOriginal && ext == "webp") {
		return webp.Encode(w, img, webp.Options{Quality: quality})
	}

	codec, ok := codecExts[ext]
	if !ok {
		codec = imaging.JPEG
	}
	return imaging.Encode(w, img, codec, imaging.JPEGQuality(quality))
}

// ResizedHeight is the height Render produces for a width change, rounded to nearest.
func ResizedHeight(srcW, srcH, width int) int {
	if srcW <= 0 || width <= 0 {
		return srcH
	}
	h := (srcH*width*2 + srcW) / (srcW * 2)
	if h < 1 {
		h = 1
	}
	return h
}
