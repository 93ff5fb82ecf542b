// Package extract resolves the data fields of a single business from the
// live detail view. Every field owns an ordered strategy chain; the first
// strategy that yields a non-empty trimmed value wins and a field whose
// whole chain fails stays empty. Strategy failures never cross fields.
package extract

import (
	"context"
	"strings"

	"github.com/Maarij07/gmap-scrapper/internal/record"
	"github.com/Maarij07/gmap-scrapper/internal/surface"
	"go.uber.org/zap"
)

// Strategy is one independent extraction attempt for one field.
type Strategy func(ctx context.Context, s surface.Surface) (string, error)

type fieldChain struct {
	field string
	chain []Strategy
	clean func(string) string
}

func text(selector string) Strategy {
	return func(ctx context.Context, s surface.Surface) (string, error) {
		return s.Text(ctx, selector)
	}
}

func attr(selector, name string) Strategy {
	return func(ctx context.Context, s surface.Surface) (string, error) {
		return s.Attr(ctx, selector, name)
	}
}

// chains is the declarative strategy table. Order within a chain matters;
// selectors mirror the Maps detail pane.
var chains = []fieldChain{
	{field: "name", chain: []Strategy{
		text("h1.DUwDvf.lfPIob"),
		text("h1.DUwDvf"),
		text(`[data-attrid="title"] span`),
	}},
	{field: "address", chain: []Strategy{
		text(`button[data-item-id="address"] div.Io6YTe`),
		text(`button[data-item-id="address"]`),
	}},
	{field: "phone", chain: []Strategy{
		text(`button[data-item-id^="phone"] div.Io6YTe`),
		attr(`a[href^="tel:"]`, "href"),
	}, clean: cleanPhone},
	{field: "website", chain: []Strategy{
		text(`a[data-item-id="authority"] div.Io6YTe`),
		attr(`a[data-item-id="authority"]`, "href"),
		attr(`a[aria-label="Website"]`, "href"),
	}},
	{field: "rating", chain: []Strategy{
		text(`div.F7nice span[aria-hidden="true"]`),
	}},
	{field: "reviews_count", chain: []Strategy{
		text(`div.F7nice span[aria-label*="reviews"]`),
	}, clean: cleanReviews},
	{field: "category", chain: []Strategy{
		text(`button[jsaction*="category"] span`),
		text(`button[jsaction*="category"]`),
	}},
	{field: "hours", chain: []Strategy{
		text(`div[data-attrid="kc:/location:hours"] span`),
		text(`div.t39EBf`),
	}},
	{field: "price_range", chain: []Strategy{
		text(`span[aria-label^="Price:"]`),
	}},
}

// Extract runs every field chain against the current detail view. It never
// fails as a whole: a strategy error is a miss for that strategy only.
func Extract(ctx context.Context, s surface.Surface, log *zap.Logger) record.Business {
	var b record.Business
	for _, fc := range chains {
		value := runChain(ctx, s, fc)
		switch fc.field {
		case "name":
			b.Name = value
		case "address":
			b.Address = value
		case "phone":
			b.Phone = value
		case "website":
			b.Website = value
		case "rating":
			b.Rating = value
		case "reviews_count":
			b.ReviewsCount = value
		case "category":
			b.Category = value
		case "hours":
			b.Hours = value
		case "price_range":
			b.PriceRange = value
		}
	}

	b.Instagram, b.Facebook = socialLinks(ctx, s)

	if b.Name == "" {
		// Downstream treats an unnamed record as rejected, so make the
		// miss visible.
		log.Warn("business name unresolved by any strategy")
	}
	return b
}

func runChain(ctx context.Context, s surface.Surface, fc fieldChain) string {
	for _, strat := range fc.chain {
		value, err := strat(ctx, s)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if fc.clean != nil {
			value = fc.clean(value)
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// socialLinks scans every outbound link once and partitions by platform
// domain, not by position.
func socialLinks(ctx context.Context, s surface.Surface) (instagram, facebook string) {
	hrefs, err := s.Attrs(ctx, "a[href]", "href")
	if err != nil {
		return "", ""
	}
	for _, href := range hrefs {
		switch {
		case instagram == "" && strings.Contains(href, "instagram.com"):
			instagram = href
		case facebook == "" && strings.Contains(href, "facebook.com"):
			facebook = href
		}
	}
	return instagram, facebook
}

func cleanPhone(v string) string {
	if strings.HasPrefix(strings.ToLower(v), "tel:") {
		v = v[4:]
	}
	return strings.TrimSpace(v)
}

func cleanReviews(v string) string {
	v = strings.ReplaceAll(v, "(", "")
	v = strings.ReplaceAll(v, ")", "")
	return strings.TrimSpace(v)
}
