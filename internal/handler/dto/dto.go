// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/werserver/thaideals/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// PageMeta describes one page of a product listing.
type PageMeta struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

// ProductListResponse represents a paginated product listing.
type ProductListResponse struct {
	Data []model.Product `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// ToProductListResponse converts a page result to the response shape.
func ToProductListResponse(result *model.PageResult) ProductListResponse {
	return ProductListResponse{
		Data: result.Items,
		Meta: PageMeta{Total: result.Total, Limit: result.Limit, Page: result.Page},
	}
}

// SettingsRequest represents a partial settings update. Nil fields are
// left unchanged.
type SettingsRequest struct {
	DataSource   *string `json:"data_source,omitempty"`
	APIToken     *string `json:"api_token,omitempty"`
	CloakToken   *string `json:"cloak_token,omitempty"`
	CloakBaseURL *string `json:"cloak_base_url,omitempty"`
	Currency     *string `json:"currency,omitempty"`
}

// SettingsResponse represents the current runtime settings. The API
// token is reported as configured/unconfigured, never echoed.
type SettingsResponse struct {
	DataSource   string `json:"data_source"`
	APITokenSet  bool   `json:"api_token_set"`
	CloakToken   string `json:"cloak_token"`
	CloakBaseURL string `json:"cloak_base_url,omitempty"`
	Currency     string `json:"currency"`
}

// SourceListResponse lists the registered tabular categories.
type SourceListResponse struct {
	Categories []string `json:"categories"`
	HasGeneral bool     `json:"has_general"`
}
