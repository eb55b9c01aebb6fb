package market

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// LoadHeadlines reads a local news feed file and extracts up to limit
// headline strings. Two layouts are accepted: a bare JSON array of strings
// and the collector format {"headlines":[{"title":...},...]}.
func LoadHeadlines(path string, limit int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("headline feed %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)

	var titles []gjson.Result
	switch {
	case root.IsArray():
		titles = root.Array()
	case root.Get("headlines").IsArray():
		for _, item := range root.Get("headlines").Array() {
			if t := item.Get("title"); t.Exists() {
				titles = append(titles, t)
			} else {
				titles = append(titles, item)
			}
		}
	default:
		return nil, fmt.Errorf("headline feed %s has unknown layout", path)
	}

	out := make([]string, 0, len(titles))
	for _, t := range titles {
		s := strings.TrimSpace(t.String())
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
