package quickresponse

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"gopkg.in/yaml.v3"
)

// Entry is one canned reply in the catalog file.
type Entry struct {
	Category  string `yaml:"category"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	SortOrder int    `yaml:"sort_order"`
	Active    *bool  `yaml:"active"`
}

// Parse decodes a YAML list of entries. Category defaults to general,
// sort order to the position in the file, and active to true.
func Parse(data []byte) ([]*entity.QuickResponse, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse quick responses: %w", err)
	}

	out := make([]*entity.QuickResponse, 0, len(entries))
	for i, e := range entries {
		title := strings.TrimSpace(e.Title)
		body := strings.TrimSpace(e.Body)
		if title == "" || body == "" {
			return nil, fmt.Errorf("quick response #%d: title and body are required", i+1)
		}
		category := strings.ToLower(strings.TrimSpace(e.Category))
		if category == "" {
			category = "general"
		}
		order := e.SortOrder
		if order == 0 {
			order = i + 1
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		out = append(out, &entity.QuickResponse{
			Category:  category,
			Title:     title,
			Body:      body,
			SortOrder: order,
			IsActive:  active,
		})
	}
	return out, nil
}

// Load reads and parses the catalog file.
func Load(path string) ([]*entity.QuickResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quick responses: %w", err)
	}
	return Parse(data)
}

// Sync replaces the stored catalog with the file contents and returns the
// number of entries loaded.
func Sync(ctx context.Context, repo repository.QuickResponseRepository, path string) (int, error) {
	items, err := Load(path)
	if err != nil {
		return 0, err
	}
	if err := repo.ReplaceAll(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
