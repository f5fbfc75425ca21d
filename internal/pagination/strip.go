package pagination

// EntryKind distinguishes page buttons from ellipsis markers
type EntryKind int

const (
	EntryPage EntryKind = iota
	EntryEllipsis
)

// Entry is one element of the page strip
type Entry struct {
	Kind    EntryKind
	Page    int // zero for ellipsis entries
	Current bool
}

// PageStrip derives the page-number strip for (current, total, maxVisible).
// It shows at most maxVisible contiguous pages centered on current, clamped to
// [1, total], plus shortcuts to page 1 and page total when the window does not
// include them. An ellipsis separates a shortcut from a non-adjacent window.
func PageStrip(current, total, maxVisible int) []Entry {
	if total < 1 || maxVisible < 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := max(1, current-maxVisible/2)
	end := min(total, start+maxVisible-1)
	if end-start+1 < maxVisible && start > 1 {
		start = max(1, end-maxVisible+1)
	}

	entries := make([]Entry, 0, maxVisible+4)
	if start > 1 {
		entries = append(entries, Entry{Kind: EntryPage, Page: 1})
		if start > 2 {
			entries = append(entries, Entry{Kind: EntryEllipsis})
		}
	}
	for p := start; p <= end; p++ {
		entries = append(entries, Entry{Kind: EntryPage, Page: p, Current: p == current})
	}
	if end < total {
		if end < total-1 {
			entries = append(entries, Entry{Kind: EntryEllipsis})
		}
		entries = append(entries, Entry{Kind: EntryPage, Page: total})
	}
	return entries
}

// TotalPages returns max(ceil(n/perPage), 1)
func TotalPages(n, perPage int) int {
	if perPage < 1 || n <= 0 {
		return 1
	}
	return (n + perPage - 1) / perPage
}
