package service

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// pageBounds clamps page and perPage and returns the matching offset.
func pageBounds(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, (page - 1) * perPage
}
