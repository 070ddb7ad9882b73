// Package normalize maps raw source records into canonical products.
// Both the remote API shape and uploaded tabular rows converge here;
// nothing else in the codebase inspects raw source fields.
package normalize

import (
	"errors"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/werserver/thaideals/internal/cloak"
	"github.com/werserver/thaideals/internal/model"
)

// ErrMissingFields marks a record without the required identifier or name.
// Callers drop such records instead of defaulting them.
var ErrMissingFields = errors.New("record is missing a product id or name")

// textPolicy strips every HTML tag from source-supplied text fields.
// Upstream and uploaded data are both untrusted.
var textPolicy = bluemonday.StrictPolicy()

// FromRemote converts one upstream API record into a canonical product.
func FromRemote(rec model.RemoteRecord, cfg cloak.Config) (model.Product, error) {
	id := strings.TrimSpace(rec.ProductID)
	name := cleanText(rec.ProductName)
	if id == "" || name == "" {
		return model.Product{}, ErrMissingFields
	}

	list := rec.ProductPrice
	if list < 0 {
		list = 0
	}
	discounted, percent := resolveDiscount(list, rec.ProductDiscounted, rec.ProductDiscountedPercentage)

	additional := splitImages(rec.ProductOtherPictures, ",")
	primary := strings.TrimSpace(rec.ProductPicture)
	if primary == "" && len(additional) > 0 {
		primary = additional[0]
		additional = additional[1:]
	}

	return model.Product{
		ID:               id,
		Name:             name,
		PrimaryImage:     primary,
		AdditionalImages: additional,
		ListPrice:        list,
		DiscountedPrice:  discounted,
		DiscountPercent:  percent,
		Currency:         rec.ProductCurrency,
		OriginalLink:     rec.ProductLink,
		OutboundLink:     cloak.Outbound(rec.TrackingLink, cfg),
		CategoryID:       rec.CategoryID,
		CategoryName:     cleanText(rec.CategoryName),
		AdvertiserID:     rec.AdvertiserID,
		ShopID:           rec.ShopID,
	}, nil
}

// FromTabular converts one uploaded row into a canonical product.
// categoryOverride, when non-empty, wins over the row's own category
// column (per-category uploads carry the category out of band).
//
// Price precedence: list price falls back from original_price to price;
// discounted price falls back from price_min to price. Either resolves
// to 0 when no column parses.
func FromTabular(row model.TabularRow, categoryOverride, currency string, cfg cloak.Config) (model.Product, error) {
	id := strings.TrimSpace(row.ID)
	name := cleanText(row.Name)
	if id == "" || name == "" {
		return model.Product{}, ErrMissingFields
	}

	list := firstPositive(parseNumber(row.OriginalPrice), parseNumber(row.Price))
	discounted := firstPositive(parseNumber(row.PriceMin), parseNumber(row.Price))
	discounted, percent := resolveDiscount(list, discounted, parsePercent(row.Discount))

	images := splitImages(row.Images, "\n")
	primary := strings.TrimSpace(row.Image)
	additional := images
	if primary == "" && len(images) > 0 {
		primary = images[0]
		additional = images[1:]
	}

	category := categoryOverride
	if category == "" {
		category = cleanText(row.Category)
	}

	return model.Product{
		ID:               id,
		Name:             name,
		PrimaryImage:     primary,
		AdditionalImages: additional,
		ListPrice:        list,
		DiscountedPrice:  discounted,
		DiscountPercent:  percent,
		Currency:         currency,
		OriginalLink:     row.URL,
		OutboundLink:     cloak.Outbound(row.URL, cfg),
		CategoryName:     category,
		AdvertiserID:     row.ShopID,
		ShopID:           cleanText(row.ShopName),
		Variations:       strings.TrimSpace(row.Variations),
	}, nil
}

// resolveDiscount reconciles the discounted price with the list price.
// A discounted price above the list price is treated as bad data and
// cleared. The percentage is only positive for an actually cheaper
// price; it is derived when the source did not supply one.
func resolveDiscount(list, discounted float64, explicitPercent int) (float64, int) {
	if discounted < 0 {
		discounted = 0
	}
	if list > 0 && discounted > list {
		discounted = 0
	}

	if discounted <= 0 || discounted >= list {
		return discounted, 0
	}

	percent := explicitPercent
	if percent <= 0 {
		percent = int(math.Round((list - discounted) / list * 100))
	}
	return discounted, percent
}

// cleanText strips HTML and surrounding whitespace from a text field.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// splitImages splits a multi-valued image field, keeping only values
// that look like absolute URLs.
func splitImages(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "http") {
			out = append(out, part)
		}
	}
	return out
}

// parseNumber reads a price field leniently, the way a spreadsheet
// export demands: thousand separators are dropped and a leading numeric
// prefix is accepted ("199.50 THB" parses as 199.50). Anything without
// a numeric prefix degrades to 0.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}

	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// parsePercent reads an integer percentage, tolerating a trailing "%".
func parsePercent(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	n := 0
	seen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return n
}

// firstPositive returns the first argument greater than zero, else 0.
func firstPositive(a, b float64) float64 {
	if a > 0 {
		return a
	}
	if b > 0 {
		return b
	}
	return 0
}
