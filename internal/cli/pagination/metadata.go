package pagination

// PaginationMeta describes the page returned by Apply.
//
//nolint:revive // PaginationMeta is the canonical name for this exported type.
type PaginationMeta struct {
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	Returned    int  `json:"returned"`
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

// NewPaginationMeta describes the page selected by params out of totalCount
// items, returned of which were shown. A page past the end is reported as the
// last page, matching Apply.
func NewPaginationMeta(params PaginationParams, totalCount, returned int) PaginationMeta {
	// Prefer explicit page-size, fall back to limit, then a single page.
	pageSize := params.PageSize
	if pageSize == 0 && params.Limit > 0 {
		pageSize = params.Limit
	}
	if pageSize == 0 {
		pageSize = totalCount
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}

	currentPage := params.Page
	if currentPage == 0 && pageSize > 0 {
		currentPage = params.Offset/pageSize + 1
	}
	if params.IsPageBased() && currentPage > totalPages && totalPages > 0 {
		currentPage = totalPages
	}
	currentPage = max(currentPage, 1)

	return PaginationMeta{
		CurrentPage: currentPage,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalItems:  totalCount,
		Returned:    returned,
		HasPrevious: currentPage > 1,
		HasNext:     currentPage < totalPages,
	}
}
