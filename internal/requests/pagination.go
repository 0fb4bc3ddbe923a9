package requests

// DefaultPageSize is the number of requests shown per page.
const DefaultPageSize = 5

// Skip returns the offset of the first item on page (1-indexed).
func Skip(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// PageCount returns ceil(total/size), never less than 1. An empty collection
// still has one (empty) page.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// PageOf returns the 1-indexed page that starts at offset skip.
func PageOf(skip, limit int) int {
	if limit <= 0 {
		return 1
	}
	return skip/limit + 1
}
