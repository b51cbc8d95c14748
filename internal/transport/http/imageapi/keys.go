package imageapi

import "image-pipeline-server/internal/domain/extract"

func parseKeys(raw string) []string {
	return extract.ParseKeys(raw)
}

func extractKeys(doc any, keys []string) []string {
	images := extract.Keys(doc, keys)
	if images == nil {
		images = []string{}
	}
	return images
}
