package pagination

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Pagination defaults and limits.
const (
	DefaultOffset    = 0
	DefaultPage      = 1
	MinPage          = 1
	MaxPageSize      = 1000
	DefaultSortField = ""
	DefaultSortOrder = "asc"
	SortOrderAsc     = "asc"
	SortOrderDesc    = "desc"
)

// Validation errors.
var (
	ErrNegative             = errors.New("cannot be negative")
	ErrInvalidPageSize      = fmt.Errorf("page-size must be at most %d", MaxPageSize)
	ErrInvalidSortOrder     = errors.New("sort order must be 'asc' or 'desc'")
	ErrMixedPaginationModes = errors.New("--page and --offset are mutually exclusive")
	ErrPageSizeWithoutPage  = errors.New("--page-size requires --page")
	ErrPageWithoutPageSize  = errors.New("--page requires --page-size")
	ErrInvalidSortFormat    = errors.New("invalid sort format: use 'field' or 'field:order' (e.g., 'size:desc')")
	ErrEmptySortField       = errors.New("sort field cannot be empty")
	ErrInvalidSortField     = errors.New("invalid sort field")
)

// PaginationParams selects one window of a listing. Two modes exist:
//   - Offset-based: --limit and --offset
//   - Page-based: --page and --page-size, optionally capped by --limit
//
// These modes are mutually exclusive. A zero Limit means no limit.
//
//nolint:revive // PaginationParams is the canonical name for this exported type.
type PaginationParams struct {
	Limit    int
	Offset   int
	Page     int
	PageSize int

	// SortField is the field name to sort by (e.g., "size", "expires").
	SortField string

	// SortOrder is the sort direction: "asc" or "desc".
	SortOrder string

	sortSpec string
}

// NewPaginationParams returns params selecting everything in default order.
func NewPaginationParams() *PaginationParams {
	return &PaginationParams{
		Offset:    DefaultOffset,
		SortField: DefaultSortField,
		SortOrder: DefaultSortOrder,
	}
}

// AddFlags registers the pagination and sort flags on cmd. sortFields is
// listed in the --sort help text.
func (p *PaginationParams) AddFlags(cmd *cobra.Command, sortFields []string) {
	cmd.Flags().IntVar(&p.Limit, "limit", p.Limit, "maximum number of results (0 for all)")
	cmd.Flags().IntVar(&p.Offset, "offset", p.Offset, "number of results to skip")
	cmd.Flags().IntVar(&p.Page, "page", p.Page, "1-based page number (requires --page-size)")
	cmd.Flags().IntVar(&p.PageSize, "page-size", p.PageSize, "results per page")
	cmd.Flags().StringVar(&p.sortSpec, "sort", "",
		fmt.Sprintf("sort as field or field:order (%s)", strings.Join(sortFields, ", ")))
}

// Resolve parses --sort and validates the flag combination. It must run after
// cmd's flags are parsed.
func (p *PaginationParams) Resolve(cmd *cobra.Command) error {
	field, order, err := ParseSort(p.sortSpec)
	if err != nil {
		return err
	}
	p.SortField, p.SortOrder = field, order

	// Page mode sizes pages with --page-size unless --limit was given too.
	if p.IsPageBased() && !cmd.Flags().Changed("limit") {
		p.Limit = 0
	}
	return p.Validate()
}

// Validate checks that the parameters are in range and consistent.
func (p PaginationParams) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{{"limit", p.Limit}, {"offset", p.Offset}, {"page", p.Page}, {"page-size", p.PageSize}} {
		if f.value < 0 {
			return fmt.Errorf("%s %w", f.name, ErrNegative)
		}
	}

	switch {
	case p.Page > 0 && p.Offset > 0:
		return ErrMixedPaginationModes
	case p.Page == 0 && p.PageSize > 0:
		return ErrPageSizeWithoutPage
	case p.Page > 0 && p.PageSize == 0:
		return ErrPageWithoutPageSize
	case p.PageSize > MaxPageSize:
		return fmt.Errorf("%w, got %d", ErrInvalidPageSize, p.PageSize)
	}
	return nil
}

// sortPartsMax is the maximum number of parts in a sort string (field:order).
const sortPartsMax = 2

// ParseSort parses a sort string in the format "field" or "field:order".
// Examples: "name", "size:desc", "expires:asc"
//
//nolint:nonamedreturns // Named returns improve readability for this multi-value function.
func ParseSort(sortStr string) (field, order string, err error) {
	if sortStr == "" {
		return DefaultSortField, DefaultSortOrder, nil
	}

	parts := strings.Split(sortStr, ":")
	switch len(parts) {
	case 1:
		field = strings.TrimSpace(parts[0])
		order = DefaultSortOrder
	case sortPartsMax:
		field = strings.TrimSpace(parts[0])
		order = strings.ToLower(strings.TrimSpace(parts[1]))
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSortFormat, sortStr)
	}

	if field == "" {
		return "", "", ErrEmptySortField
	}
	if order != SortOrderAsc && order != SortOrderDesc {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidSortOrder, order)
	}
	return field, order, nil
}

// IsPageBased returns true if page-based pagination is active.
func (p PaginationParams) IsPageBased() bool {
	return p.Page > 0
}

// IsEnabled returns true if any pagination parameters are set.
func (p PaginationParams) IsEnabled() bool {
	return p.Limit > 0 || p.Page > 0 || p.PageSize > 0 || p.Offset > 0
}

// CalculateOffsetLimit returns the effective offset and limit. In page mode
// an explicit Limit wins over PageSize.
//
//nolint:nonamedreturns // Named returns improve readability for this multi-value function.
func (p PaginationParams) CalculateOffsetLimit() (offset, limit int) {
	if !p.IsPageBased() {
		return p.Offset, p.Limit
	}
	offset = (p.Page - 1) * p.PageSize
	limit = p.PageSize
	if p.Limit > 0 {
		limit = p.Limit
	}
	return offset, limit
}

// Apply returns the page of items selected by p. Page-based requests past the
// end are clamped to the last page; offset-based requests past the end return
// an empty slice.
func Apply[T any](p PaginationParams, items []T) []T {
	if len(items) == 0 {
		return items
	}

	offset, limit := p.CalculateOffsetLimit()

	if p.IsPageBased() && offset >= len(items) {
		pageSize := p.PageSize
		if pageSize <= 0 {
			pageSize = len(items)
		}
		offset = ((len(items) - 1) / pageSize) * pageSize
	}

	if offset >= len(items) {
		return []T{}
	}

	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
