package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestReadDocIsValidJSON(t *testing.T) {
	doc, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}

	var parsed struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("openapi document is not JSON: %v", err)
	}
	if parsed.Info.Title != SwaggerInfo.Title {
		t.Fatalf("title = %q, want %q", parsed.Info.Title, SwaggerInfo.Title)
	}
	for _, path := range []string{"/compress", "/bulk-image-transform", "/image-transform-json", "/scrape-images", "/api/health"} {
		if _, ok := parsed.Paths[path]; !ok {
			t.Fatalf("path %s missing from openapi document", path)
		}
	}
}
