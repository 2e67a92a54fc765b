package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// Normalize fills defaults in place.
func (f *ListFilters) Normalize() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.SortDir != SortDesc {
		f.SortDir = SortAsc
	}
}

// Offset derives the row offset from page and limit.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
