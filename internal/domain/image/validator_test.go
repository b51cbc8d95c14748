package image

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	testutil "image-pipeline-server/internal/platform/testing"
)

func TestCheckShape(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		msg   string
	}{
		{"", false, "URL is required"},
		{"   ", false, "URL is required"},
		{"not-a-url", false, "Invalid URL format"},
		{"ftp://example.com/a.jpg", false, "Invalid URL format"},
		{"http://", false, "Invalid URL format"},
		{"https://example.com/a.jpg", true, "Valid URL"},
		{" https://example.com/a.jpg?x=1 ", true, "Valid URL"},
	}
	for _, tc := range cases {
		got := CheckShape(tc.in)
		assert.Equal(t, tc.valid, got.IsValid, tc.in)
		assert.Equal(t, tc.msg, got.Message, tc.in)
	}
}

func TestValidateRejectsMalformedURL(t *testing.T) {
	v := NewURLValidator(ValidatorOptions{})
	defer v.Close()

	got := v.Validate(context.Background(), "not-a-url")
	assert.Equal(t, ValidationResult{IsValid: false, Message: "Invalid URL format"}, got)
}

func TestValidateProbesContentType(t *testing.T) {
	jpg := testutil.EncodeTestImage(t, "jpeg", 8, 8)
	srv := testutil.NewImageServer(t, map[string]testutil.Asset{
		"/a.jpg":     {ContentType: "image/jpeg", Body: jpg},
		"/page.html": {ContentType: "text/html", Body: []byte("<html></html>")},
		"/gone.jpg":  {ContentType: "image/jpeg", Status: 500},
	})

	v := NewURLValidator(ValidatorOptions{})
	defer v.Close()
	ctx := context.Background()

	ok := v.Validate(ctx, srv.URL+"/a.jpg")
	assert.True(t, ok.IsValid)
	assert.Equal(t, "Valid URL", ok.Message)
	assert.Equal(t, "image/jpeg", ok.ContentType)

	for _, p := range []string{"/page.html", "/missing.png", "/gone.jpg"} {
		got := v.Validate(ctx, srv.URL+p)
		assert.False(t, got.IsValid, p)
		assert.Equal(t, "URL does not point to a valid image", got.Message, p)
	}

	assert.Equal(t, 0, srv.Hits("GET", "/a.jpg"), "validation must not download the body")
}

func TestValidateCachesVerdicts(t *testing.T) {
	srv := testutil.NewImageServer(t, map[string]testutil.Asset{
		"/a.png": {ContentType: "image/png", Body: testutil.EncodeTestImage(t, "png", 4, 4)},
	})

	v := NewURLValidator(ValidatorOptions{CacheTTL: time.Minute})
	defer v.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, v.Validate(context.Background(), srv.URL+"/a.png").IsValid)
	}
	assert.Equal(t, 1, srv.Hits("HEAD", "/a.png"))
}
