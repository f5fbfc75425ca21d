// Package pagination partitions a result list into fixed-size pages and
// derives the page-number strip shown to the user.
package pagination

import (
	"log/slog"
	"sync"

	"github.com/lamim/salonforge/pkg/models"
)

const (
	// ItemsPerPage is fixed
	ItemsPerPage = 6
	// DefaultMaxVisible is the width of the centered page window
	DefaultMaxVisible = 5
)

// View is everything a presenter needs to render one page
type View struct {
	Items       []models.Template
	Offset      int // index of Items[0] within the full list
	Strip       []Entry
	CurrentPage int
	TotalPages  int
	TotalItems  int
	HasPrev     bool
	HasNext     bool
	Hidden      bool // pagination controls are hidden when there is at most one page
}

// Sink receives a View whenever the visible page changes
type Sink interface {
	OnPageChanged(View)
}

// Controller owns PaginationState
type Controller struct {
	mu          sync.Mutex
	items       []models.Template
	currentPage int
	totalPages  int
	maxVisible  int
	sink        Sink
	logger      *slog.Logger
}

// NewController creates a controller. maxVisible < 1 selects DefaultMaxVisible.
func NewController(maxVisible int, sink Sink, logger *slog.Logger) *Controller {
	if maxVisible < 1 {
		maxVisible = DefaultMaxVisible
	}
	return &Controller{
		currentPage: 1,
		totalPages:  1,
		maxVisible:  maxVisible,
		sink:        sink,
		logger:      logger,
	}
}

// Load replaces the list, resets to page 1 and renders it
func (c *Controller) Load(items []models.Template) {
	c.mu.Lock()
	c.items = append([]models.Template(nil), items...)
	c.totalPages = TotalPages(len(c.items), ItemsPerPage)
	c.currentPage = 1
	view := c.viewLocked()
	c.mu.Unlock()

	c.logger.Debug("Pagination loaded", "items", len(items), "pages", view.TotalPages)
	c.render(view)
}

// GoTo moves to page. Out-of-range pages are ignored and reported as false.
func (c *Controller) GoTo(page int) bool {
	c.mu.Lock()
	if page < 1 || page > c.totalPages {
		total := c.totalPages
		c.mu.Unlock()
		c.logger.Debug("Ignoring out-of-range page", "page", page, "total", total)
		return false
	}
	c.currentPage = page
	view := c.viewLocked()
	c.mu.Unlock()

	c.render(view)
	return true
}

// Next moves forward one page if possible
func (c *Controller) Next() bool {
	return c.GoTo(c.CurrentPage() + 1)
}

// Prev moves back one page if possible
func (c *Controller) Prev() bool {
	return c.GoTo(c.CurrentPage() - 1)
}

// CurrentPage returns the 1-based current page
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage
}

// TotalPages returns the page count, at least 1
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages
}

// Items returns the full list, for export
func (c *Controller) Items() []models.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Template(nil), c.items...)
}

// View returns the current page without re-rendering
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	start := (c.currentPage - 1) * ItemsPerPage
	end := min(start+ItemsPerPage, len(c.items))
	var page []models.Template
	if start < end {
		page = append(page, c.items[start:end]...)
	}
	return View{
		Items:       page,
		Offset:      start,
		Strip:       PageStrip(c.currentPage, c.totalPages, c.maxVisible),
		CurrentPage: c.currentPage,
		TotalPages:  c.totalPages,
		TotalItems:  len(c.items),
		HasPrev:     c.currentPage > 1,
		HasNext:     c.currentPage < c.totalPages,
		Hidden:      c.totalPages <= 1,
	}
}

func (c *Controller) render(v View) {
	if c.sink != nil {
		c.sink.OnPageChanged(v)
	}
}
