// Package snapshot extracts business records from a previously captured
// Maps HTML document. Two independent sub-strategies run over the same
// document and their results are concatenated: embedded structured data
// and markup elements.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Maarij07/gmap-scrapper/internal/record"
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Embedded-data markers seen in captured Maps pages. Each pattern captures
// one JSON array to parse.
var jsonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.APP_INITIALIZATION_STATE\s*=\s*(\[.*?\]);`),
	regexp.MustCompile(`(?s)window\.APP_OPTIONS\s*=\s*(\[.*?\]);`),
	regexp.MustCompile(`(?s)"businesses":\s*(\[.*?\])`),
	regexp.MustCompile(`(?s)"results":\s*(\[.*?\])`),
}

// Keys whose presence marks a parsed object as a business candidate.
var businessIndicators = []string{"name", "address", "phone", "website", "rating", "reviews"}

// Ordered source-key aliases per field; the first present non-empty value
// wins.
var fieldAliases = map[string][]string{
	"name":          {"name", "title", "businessName", "placeName"},
	"address":       {"address", "location", "addr", "fullAddress"},
	"phone":         {"phone", "phoneNumber", "tel", "telephone"},
	"website":       {"website", "url", "homepage", "web"},
	"rating":        {"rating", "stars"},
	"reviews_count": {"reviews", "reviewCount", "reviews_count"},
	"category":      {"category", "type"},
}

var containerSelectors = []string{
	"[data-result-id]",
	"[data-cid]",
	".place-result",
	`[role="article"]`,
	".search-result",
}

// ExtractAll parses one snapshot document. The reader's charset is
// detected and transformed to UTF-8 before anything else.
func ExtractAll(r io.Reader, log *zap.Logger) ([]record.Business, error) {
	raw, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var out []record.Business
	out = append(out, fromStructuredData(raw)...)

	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		log.Warn("markup strategy skipped, document would not parse", zap.Error(err))
		return out, nil
	}
	out = fromMarkup(root, out)

	log.Info("snapshot parsed", zap.Int("businesses", len(out)))
	return out, nil
}

// decode sniffs the document's encoding from its first bytes and returns
// UTF-8 text; an unreadable prefix falls back to UTF-8 as-is.
func decode(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(1024)
	if err != nil && err != io.EOF {
		return "", err
	}
	enc, _, _ := charset.DetermineEncoding(head, "")
	if enc == nil {
		enc = unicode.UTF8
	}
	body, err := io.ReadAll(transform.NewReader(br, enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fromStructuredData scans the raw text for known embedding patterns,
// parses each block and walks the tree for business-like objects.
func fromStructuredData(raw string) []record.Business {
	var out []record.Business
	for _, pattern := range jsonPatterns {
		for _, m := range pattern.FindAllStringSubmatch(raw, -1) {
			var data interface{}
			if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
				continue
			}
			walk(data, &out)
		}
	}
	return out
}

func walk(node interface{}, out *[]record.Business) {
	switch v := node.(type) {
	case map[string]interface{}:
		if looksLikeBusiness(v) {
			if b, ok := mapBusiness(v); ok {
				*out = append(*out, b)
			}
		}
		for _, child := range v {
			walk(child, out)
		}
	case []interface{}:
		for _, child := range v {
			walk(child, out)
		}
	}
}

func looksLikeBusiness(obj map[string]interface{}) bool {
	for key := range obj {
		lower := strings.ToLower(key)
		for _, indicator := range businessIndicators {
			if strings.Contains(lower, indicator) {
				return true
			}
		}
	}
	return false
}

// mapBusiness projects a candidate object into the record shape. A
// candidate with no resolvable name is dropped.
func mapBusiness(obj map[string]interface{}) (record.Business, bool) {
	pick := func(field string) string {
		for _, alias := range fieldAliases[field] {
			if v, ok := obj[alias]; ok {
				if s := stringify(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	b := record.Business{
		Name:         pick("name"),
		Address:      pick("address"),
		Phone:        pick("phone"),
		Website:      pick("website"),
		Rating:       pick("rating"),
		ReviewsCount: pick("reviews_count"),
		Category:     pick("category"),
	}
	if b.Name == "" {
		return record.Business{}, false
	}
	return b, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// fromMarkup selects result-like containers and resolves each field by an
// ordered selector list. A record joins the output only when no
// full-value-equal record is already accumulated.
func fromMarkup(root *html.Node, acc []record.Business) []record.Business {
	doc := goquery.NewDocumentFromNode(root)
	for _, selector := range containerSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			b, ok := parseContainer(sel)
			if !ok {
				return
			}
			if !containsRecord(acc, b) {
				acc = append(acc, b)
			}
		})
	}
	return acc
}

func parseContainer(sel *goquery.Selection) (record.Business, bool) {
	var b record.Business

	for _, nameSel := range []string{"h3", ".title", `[aria-label*="name"]`, ".business-name"} {
		if v := strings.TrimSpace(sel.Find(nameSel).First().Text()); v != "" {
			b.Name = v
			break
		}
	}
	if b.Name == "" {
		b.Name = headingByXPath(sel)
	}
	if b.Name == "" {
		return record.Business{}, false
	}

	for _, addrSel := range []string{".address", `[data-value*="address"]`, ".location"} {
		if v := strings.TrimSpace(sel.Find(addrSel).First().Text()); v != "" {
			b.Address = v
			break
		}
	}

	if href, ok := sel.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		b.Phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	}

	// Outbound links partition by domain, same rule the live extractor
	// applies.
	sel.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		switch {
		case strings.Contains(href, "facebook.com"):
			if b.Facebook == "" {
				b.Facebook = href
			}
		case strings.Contains(href, "instagram.com"):
			if b.Instagram == "" {
				b.Instagram = href
			}
		case b.Website == "" && strings.HasPrefix(href, "http"):
			b.Website = href
		}
	})

	return b, true
}

// headingByXPath is the last-resort name strategy: anything marked as a
// heading inside the container.
func headingByXPath(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	node, err := htmlquery.Query(sel.Nodes[0], `.//*[@role="heading"]`)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}

func containsRecord(acc []record.Business, b record.Business) bool {
	for _, existing := range acc {
		if existing == b {
			return true
		}
	}
	return false
}
