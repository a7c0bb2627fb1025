package triplist

// DefaultPageSize is the number of trips per page when none is configured.
const DefaultPageSize = 10

// windowWidth is the most page numbers a pager window shows.
const windowWidth = 5

// Paginator tracks the current page over a list of a given length.
// An empty list has zero pages and current page 0.
type Paginator struct {
	size  int
	total int
	page  int
}

// NewPaginator returns a paginator for pages of size items.
func NewPaginator(size int) *Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Paginator{size: size}
}

// SetTotal records the list length and clamps the current page.
func (p *Paginator) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	p.total = n
	p.clamp()
}

// SetPageSize changes the page size and returns to the first page.
func (p *Paginator) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p.size = size
	p.page = 1
	p.clamp()
}

// Reset returns to the first page.
func (p *Paginator) Reset() {
	p.page = 1
	p.clamp()
}

func (p *Paginator) PageSize() int   { return p.size }
func (p *Paginator) TotalItems() int { return p.total }
func (p *Paginator) Page() int       { return p.page }

// TotalPages is ceil(total/size).
func (p *Paginator) TotalPages() int {
	return (p.total + p.size - 1) / p.size
}

// Next advances one page and reports whether the page changed.
func (p *Paginator) Next() bool {
	return p.Goto(p.page + 1)
}

// Prev goes back one page and reports whether the page changed.
func (p *Paginator) Prev() bool {
	return p.Goto(p.page - 1)
}

// Goto moves to page, clamped to the valid range, and reports whether the
// page changed.
func (p *Paginator) Goto(page int) bool {
	before := p.page
	p.page = page
	p.clamp()
	return p.page != before
}

func (p *Paginator) clamp() {
	pages := p.TotalPages()
	switch {
	case pages == 0:
		p.page = 0
	case p.page < 1:
		p.page = 1
	case p.page > pages:
		p.page = pages
	}
}

// Bounds returns the half-open index range of the current page.
func (p *Paginator) Bounds() (int, int) {
	if p.page == 0 {
		return 0, 0
	}
	lo := (p.page - 1) * p.size
	hi := min(lo+p.size, p.total)
	return lo, hi
}

// Paginate returns the current page of items. items must have the length
// last passed to SetTotal.
func Paginate[T any](p *Paginator, items []T) []T {
	lo, hi := p.Bounds()
	if hi > len(items) {
		hi = len(items)
	}
	if lo >= hi {
		return []T{}
	}
	return items[lo:hi]
}

// PageItemKind distinguishes page links from ellipsis markers.
type PageItemKind string

const (
	PageNumber PageItemKind = "page"
	PageGap    PageItemKind = "ellipsis"
)

// PageItem is one element of a rendered pager.
type PageItem struct {
	Kind    PageItemKind `json:"kind"`
	Number  int          `json:"number,omitempty"`
	Current bool         `json:"current,omitempty"`
}

// Window returns the compact pager: up to five page numbers around the
// current page, with the first and last pages and ellipsis markers added
// when they fall outside that run.
func (p *Paginator) Window() []PageItem {
	pages := p.TotalPages()
	if pages == 0 {
		return []PageItem{}
	}
	start := max(1, p.page-windowWidth/2)
	end := min(pages, start+windowWidth-1)
	start = max(1, end-windowWidth+1)

	items := make([]PageItem, 0, windowWidth+4)
	if start > 1 {
		items = append(items, p.item(1))
		if start > 2 {
			items = append(items, PageItem{Kind: PageGap})
		}
	}
	for n := start; n <= end; n++ {
		items = append(items, p.item(n))
	}
	if end < pages {
		if end < pages-1 {
			items = append(items, PageItem{Kind: PageGap})
		}
		items = append(items, p.item(pages))
	}
	return items
}

func (p *Paginator) item(n int) PageItem {
	return PageItem{Kind: PageNumber, Number: n, Current: n == p.page}
}
