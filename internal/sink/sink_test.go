package sink

import (
	"context"
	"testing"

	"github.com/Maarij07/gmap-scrapper/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Tabular that counts header writes.
type memStore struct {
	header       []string
	rows         [][]string
	headerWrites int
}

func (m *memStore) ReadHeader(context.Context) ([]string, error) { return m.header, nil }
func (m *memStore) WriteHeader(_ context.Context, header []string) error {
	m.header = append([]string(nil), header...)
	m.headerWrites++
	return nil
}
func (m *memStore) AppendRow(_ context.Context, row []string) error {
	m.rows = append(m.rows, append([]string(nil), row...))
	return nil
}

func TestEnsureSchemaWritesEmptyHeader(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())

	require.NoError(t, w.EnsureSchema(context.Background()))
	assert.Equal(t, record.Columns, store.header)
	assert.Equal(t, 1, store.headerWrites)
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())

	require.NoError(t, w.EnsureSchema(context.Background()))
	require.NoError(t, w.EnsureSchema(context.Background()))
	assert.Equal(t, 1, store.headerWrites, "converged header must not be rewritten")
}

func TestEnsureSchemaOverwritesShortHeader(t *testing.T) {
	store := &memStore{header: []string{"name", "address"}}
	store.rows = [][]string{{"Old Co", "1 Old St"}}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())

	require.NoError(t, w.EnsureSchema(context.Background()))
	assert.Equal(t, record.Columns, store.header)
	assert.Equal(t, 1, store.headerWrites, "mismatch is fixed in one write")
	// Data rows are untouched, even though they no longer align.
	assert.Equal(t, [][]string{{"Old Co", "1 Old St"}}, store.rows)
}

func TestEnsureSchemaOverwritesMismatchedPrefix(t *testing.T) {
	header := append([]string(nil), record.Columns...)
	header[0] = "title"
	store := &memStore{header: header}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())

	require.NoError(t, w.EnsureSchema(context.Background()))
	assert.Equal(t, record.Columns, store.header)
	assert.Equal(t, 1, store.headerWrites)
}

func TestAppendProjectsOntoSchemaOrder(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())
	require.NoError(t, w.EnsureSchema(context.Background()))

	fields := map[string]string{
		"name":        "Acme Ltd",
		"phone":       "+44 20 7946 0958",
		"region":      "UK",
		"search_term": "Ecommerce",
		"scraped_at":  "2025-09-29T05:30:00",
	}
	require.NoError(t, w.Append(context.Background(), fields))

	require.Len(t, store.rows, 1)
	row := store.rows[0]
	require.Len(t, row, len(record.Columns))
	assert.Equal(t, "Acme Ltd", row[0])
	assert.Equal(t, "", row[1], "missing field renders as empty string")
	assert.Equal(t, "+44 20 7946 0958", row[2])
	assert.Equal(t, "UK", row[11])
	assert.Equal(t, "Ecommerce", row[12])
	assert.Equal(t, "2025-09-29T05:30:00", row[13])
}

func TestAppendRoundTrip(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, record.Columns, 0, zap.NewNop())
	require.NoError(t, w.EnsureSchema(context.Background()))

	lead := record.Lead{
		Business: record.Business{
			Name:         "Café René & Co. Ltd. \"The Best\"",
			Address:      "123 Main St., Apt #5 (2nd Floor)",
			Phone:        "+44 (0)20 7946 0958",
			Website:      "https://café-rené.co.uk/menu?lang=en",
			Instagram:    "@café_rené_uk",
			Facebook:     "https://facebook.com/café.rené.uk",
			Rating:       "4.8★",
			ReviewsCount: "1,234",
			Category:     "Restaurant & Café",
			Hours:        "Mon-Fri: 8:00 AM - 10:00 PM",
			PriceRange:   "£££",
		},
		Region:     "London",
		SearchTerm: "Cafés & Restaurants",
		ScrapedAt:  "2025-09-29T05:30:00",
	}
	require.NoError(t, w.Append(context.Background(), lead.Fields()))

	require.Len(t, store.rows, 1)
	fields := lead.Fields()
	for i, col := range record.Columns {
		assert.Equal(t, fields[col], store.rows[0][i], col)
	}
}
