package pagination

import (
	"cmp"
	"slices"
	"sort"

	"github.com/rshade/uploadwiz/internal/ledger"
)

// Sortable ledger entry fields.
const (
	SortFieldName    = "name"
	SortFieldSize    = "size"
	SortFieldStashed = "stashed"
	SortFieldExpires = "expires"
)

// Sorter sorts a listing by a named field.
type Sorter[T any] interface {
	// Sort returns a sorted copy of items.
	Sort(items []T, field, order string) []T
	// IsValidField checks if the given field name is valid for sorting.
	IsValidField(field string) bool
	// GetValidFields returns the valid field names in a stable order.
	GetValidFields() []string
}

// EntrySorter implements Sorter for ledger entries.
type EntrySorter struct {
	compare map[string]func(a, b ledger.Entry) int
}

var _ Sorter[ledger.Entry] = (*EntrySorter)(nil)

// NewEntrySorter creates an EntrySorter for name, size, stashed and expires.
func NewEntrySorter() *EntrySorter {
	return &EntrySorter{
		compare: map[string]func(a, b ledger.Entry) int{
			SortFieldName:    func(a, b ledger.Entry) int { return cmp.Compare(a.Key, b.Key) },
			SortFieldSize:    func(a, b ledger.Entry) int { return cmp.Compare(a.Size, b.Size) },
			SortFieldStashed: func(a, b ledger.Entry) int { return a.StashedAt.Compare(b.StashedAt) },
			SortFieldExpires: func(a, b ledger.Entry) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
		},
	}
}

// IsValidField checks if the field is valid for sorting.
func (s *EntrySorter) IsValidField(field string) bool {
	_, ok := s.compare[field]
	return ok
}

// GetValidFields returns all valid sort fields.
func (s *EntrySorter) GetValidFields() []string {
	fields := make([]string, 0, len(s.compare))
	for field := range s.compare {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Sort returns entries sorted by field, stable for ties. An invalid field
// returns the input unchanged.
func (s *EntrySorter) Sort(entries []ledger.Entry, field, order string) []ledger.Entry {
	compare, ok := s.compare[field]
	if !ok {
		return entries
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b ledger.Entry) int {
		if order == SortOrderDesc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return sorted
}
