// Package record defines the canonical business record and the column
// schema shared by the live extractor, the snapshot extractor and the sink.
package record

import "time"

// Columns is the persisted header order. The sink header is reconciled to
// exactly this sequence before any row is appended.
var Columns = []string{
	"name",
	"address",
	"phone",
	"website",
	"instagram",
	"facebook",
	"rating",
	"reviews_count",
	"category",
	"hours",
	"price_range",
	"region",
	"search_term",
	"scraped_at",
}

// Business holds the eleven data fields extracted per entity. An
// unextracted field is the empty string, never absent.
type Business struct {
	Name         string
	Address      string
	Phone        string
	Website      string
	Instagram    string
	Facebook     string
	Rating       string
	ReviewsCount string
	Category     string
	Hours        string
	PriceRange   string
}

// Lead is a Business enriched with run metadata. It is built once per
// successfully named entity and never mutated afterwards.
type Lead struct {
	Business
	Region     string
	SearchTerm string
	ScrapedAt  string
}

// timestampLayout matches ISO-8601 at second precision, no zone.
const timestampLayout = "2006-01-02T15:04:05"

// Enrich attaches run metadata to an extracted business.
func Enrich(b Business, region, searchTerm string, at time.Time) Lead {
	return Lead{
		Business:   b,
		Region:     region,
		SearchTerm: searchTerm,
		ScrapedAt:  at.Format(timestampLayout),
	}
}

// Fields maps the lead onto column names. Every column in Columns has an
// entry, empty when the field was not extracted.
func (l Lead) Fields() map[string]string {
	return map[string]string{
		"name":          l.Name,
		"address":       l.Address,
		"phone":         l.Phone,
		"website":       l.Website,
		"instagram":     l.Instagram,
		"facebook":      l.Facebook,
		"rating":        l.Rating,
		"reviews_count": l.ReviewsCount,
		"category":      l.Category,
		"hours":         l.Hours,
		"price_range":   l.PriceRange,
		"region":        l.Region,
		"search_term":   l.SearchTerm,
		"scraped_at":    l.ScrapedAt,
	}
}
