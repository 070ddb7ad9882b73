// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"strings"
)

// DataSource identifies which loader serves product pages.
type DataSource string

const (
	SourceRemote  DataSource = "remote"
	SourceTabular DataSource = "tabular"
)

// IsValid checks if the data source value is recognized.
func (d DataSource) IsValid() bool {
	return d == SourceRemote || d == SourceTabular
}

// ParseDataSource converts a raw string into a DataSource.
func ParseDataSource(s string) (DataSource, error) {
	d := DataSource(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown data source %q", s)
	}
	return d, nil
}

// Product is the canonical record shape served to all consumers,
// regardless of which source produced it. Immutable once constructed.
type Product struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	PrimaryImage     string   `json:"primary_image"`
	AdditionalImages []string `json:"additional_images,omitempty"`
	ListPrice        float64  `json:"list_price"`
	DiscountedPrice  float64  `json:"discounted_price"`
	DiscountPercent  int      `json:"discount_percent"`
	Currency         string   `json:"currency"`
	OriginalLink     string   `json:"original_link"`
	OutboundLink     string   `json:"outbound_link"`
	CategoryID       string   `json:"category_id,omitempty"`
	CategoryName     string   `json:"category_name"`
	AdvertiserID     string   `json:"advertiser_id,omitempty"`
	ShopID           string   `json:"shop_id,omitempty"`
	Variations       string   `json:"variations,omitempty"`
}

// HasDiscount returns true when a discounted price is actually in effect.
func (p *Product) HasDiscount() bool {
	return p.DiscountedPrice > 0 && p.DiscountedPrice < p.ListPrice
}

// Pagination bounds for page queries.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageQuery describes one page of filtered products.
type PageQuery struct {
	Keyword      string
	CategoryID   string
	AdvertiserID string
	Limit        int
	Page         int
}

// Normalized returns a copy with defaults applied and limits clamped.
// Limit is capped at MaxLimit; page is at least 1.
func (q PageQuery) Normalized() PageQuery {
	q.Keyword = strings.TrimSpace(q.Keyword)
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	q.AdvertiserID = strings.TrimSpace(q.AdvertiserID)
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

// PageResult is one page of products plus the total match count
// across the whole source, independent of pagination.
type PageResult struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Limit int       `json:"limit"`
	Page  int       `json:"page"`
}
