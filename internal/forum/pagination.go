package forum

const (
	// DefaultPage is the page used when a request omits or mangles the page number.
	DefaultPage = 1
	// DefaultListLimit is the page size for topic listings, searches and moderation lists.
	DefaultListLimit = 20
	// DefaultTopicPostsLimit is the page size for posts shown under a topic.
	DefaultTopicPostsLimit = 10
	// DefaultMaxPageSize caps the page size a client may request.
	DefaultMaxPageSize = 100
)

// PageRequest selects one page of a listing. Zero or negative values mean "use the default".
type PageRequest struct {
	Page  int
	Limit int
}

// Pagination is the envelope returned alongside every list: pages = ceil(total/limit).
type Pagination struct {
	Page  int
	Limit int
	Total int64
	Pages int
}

func (r PageRequest) normalize(defaultLimit, maxLimit int) PageRequest {
	page := r.Page
	if page <= 0 {
		page = DefaultPage
	}
	limit := r.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

func (r PageRequest) offset() int {
	return (r.Page - 1) * r.Limit
}

func newPagination(request PageRequest, total int64) Pagination {
	pages := 0
	if request.Limit > 0 {
		pages = int((total + int64(request.Limit) - 1) / int64(request.Limit))
	}
	return Pagination{
		Page:  request.Page,
		Limit: request.Limit,
		Total: total,
		Pages: pages,
	}
}
