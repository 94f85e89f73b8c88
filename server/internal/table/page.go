package table

import "github.com/rulboard/rulboard/pkg/types"

// DefaultPageSize matches the dashboard's table length.
const DefaultPageSize = 50

// pagerBefore and pagerAfter bound the pager links around the current page;
// pagerAfter is exclusive.
const (
	pagerBefore = 2
	pagerAfter  = 3
)

// PageWindow selects one fixed-size page. Index is 0-based.
type PageWindow struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// Bounds returns the half-open offset range [start, end) of the window within
// a sequence of total items. Both stay within [0, total]; a window outside the
// sequence yields start == end.
func (w PageWindow) Bounds(total int) (start, end int) {
	if w.Index < 0 || w.Index >= PageCount(total, w.Size) {
		// Checked before multiplying so a huge index cannot overflow.
		return total, total
	}
	start = w.Index * w.Size
	end = start + w.Size
	if end > total {
		end = total
	}
	return start, end
}

// PageCount returns ceil(total/size), or 0 when total or size is not positive.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns a copy of the records inside w. An out-of-range index or
// non-positive size yields an empty slice.
func Paginate(sorted []types.PredictionRecord, w PageWindow) []types.PredictionRecord {
	if w.Index < 0 || w.Index >= PageCount(len(sorted), w.Size) {
		return []types.PredictionRecord{}
	}
	start, end := w.Bounds(len(sorted))
	if start >= end {
		return []types.PredictionRecord{}
	}
	out := make([]types.PredictionRecord, end-start)
	copy(out, sorted[start:end])
	return out
}

// Next returns the following page index, staying on the last page.
func Next(index, pageCount int) int {
	next := index + 1
	if next > pageCount-1 {
		next = pageCount - 1
	}
	if next < 0 {
		return 0
	}
	return next
}

// Prev returns the preceding page index, staying on the first page.
func Prev(index int) int {
	if index-1 < 0 {
		return 0
	}
	return index - 1
}

// PagerLinks returns the page indices shown as direct links around index:
// up to two before and two after it.
func PagerLinks(index, pageCount int) []int {
	if index < 0 || index >= pageCount {
		return []int{}
	}
	from := index - pagerBefore
	if from < 0 {
		from = 0
	}
	to := index + pagerAfter
	if to > pageCount {
		to = pageCount
	}
	links := make([]int, 0, pagerBefore+pagerAfter)
	for i := from; i < to; i++ {
		links = append(links, i)
	}
	return links
}
