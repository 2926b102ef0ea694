package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Category string

var Categories = []Category{
	"electronics", "clothing", "home", "books", "sports",
	"food", "beauty", "toys", "health", "automotive", "other",
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    Category  `json:"category"`
	SKU         string    `json:"sku,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Inventory   int       `json:"inventory"`
	Tags        TagList   `json:"tags"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TagList accepts either a JSON array of strings or a comma separated string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := TagList{}
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		*t = out
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = list
	return nil
}

// ProductQuery holds the optional list/search predicates. Nil bounds are open.
type ProductQuery struct {
	Category   string
	MinPrice   *float64
	MaxPrice   *float64
	ActiveOnly bool
	Text       string
	Page       int
	PerPage    int
}
