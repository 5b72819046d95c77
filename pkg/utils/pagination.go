package utils

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies defaults to zero values and rejects negatives or
// oversize pages.
func NormalizePage(page, pageSize int) (int, int, error) {
	if page < 0 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 0 || pageSize > MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize, nil
}

func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
