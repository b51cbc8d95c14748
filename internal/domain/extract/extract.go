// Package extract pulls string values out of arbitrary JSON documents by key name.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	platformerrors "image-pipeline-server/internal/platform/errors"
)

// MaxDepth bounds recursion into nested objects and arrays.
const MaxDepth = 256

// Keys collects every string stored under any of names, at any depth of
// value. Names are searched in the order given; results are deduplicated
// keeping the first occurrence. Object members are visited in sorted key order.
//
// A matched string is collected as is, a matched array contributes its string
// elements, and any other matched value is searched further.
func Keys(value any, names []string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		walk(value, name, 0, add)
	}
	return out
}

func walk(value any, name string, depth int, add func(string)) {
	if depth >= MaxDepth {
		return
	}
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := v[k]
			if k == name && collect(child, add) {
				continue
			}
			walk(child, name, depth+1, add)
		}
	case []any:
		for _, child := range v {
			walk(child, name, depth+1, add)
		}
	}
}

// collect reports whether the matched value was fully consumed.
func collect(value any, add func(string)) bool {
	switch v := value.(type) {
	case string:
		add(v)
		return true
	case []any:
		consumed := true
		for _, el := range v {
			if s, ok := el.(string); ok {
				add(s)
			} else {
				consumed = false
			}
		}
		return consumed
	default:
		return false
	}
}

// ParseKeys splits a comma separated key list, dropping blanks.
func ParseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Decode parses a JSON document into maps, slices and scalars.
func Decode(data []byte) (any, error) {
	var value any
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// Source downloads JSON documents.
type Source struct {
	client *resty.Client
}

func NewSource(client *resty.Client) *Source {
	if client == nil {
		client = resty.New()
	}
	return &Source{client: client}
}

// Load fetches url and decodes its body. Any failure is a fetch error.
func (s *Source) Load(ctx context.Context, url string) (any, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindFetch, "extract.load", "failed to fetch JSON", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, platformerrors.New(platformerrors.KindFetch, "extract.load",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode(), url))
	}

	value, err := Decode(resp.Body())
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindFetch, "extract.load", "response is not valid JSON", err)
	}
	return value, nil
}
