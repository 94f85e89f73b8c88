package table

import "github.com/rulboard/rulboard/pkg/types"

// State is the caller-owned table context: the active sort and page window.
// Every method returns a new State; none mutates the receiver.
type State struct {
	Sort SortSpec   `json:"sort"`
	Page PageWindow `json:"page"`
}

// NewState returns an unsorted State on the first page.
func NewState(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{Page: PageWindow{Size: pageSize}}
}

// WithSort applies a user sort selection on key and returns to the first page.
func (s State) WithSort(key string) State {
	s.Sort = s.Sort.Toggle(key)
	s.Page.Index = 0
	return s
}

// WithSortSpec replaces the sort wholesale and returns to the first page.
func (s State) WithSortSpec(spec SortSpec) State {
	s.Sort = spec
	s.Page.Index = 0
	return s
}

// WithRecords returns the State to use after the record set changes.
func (s State) WithRecords() State {
	s.Page.Index = 0
	return s
}

// WithPage moves to page index without clamping.
func (s State) WithPage(index int) State {
	s.Page.Index = index
	return s
}

// Page is one rendered page of the table.
type Page struct {
	Rows      []types.PredictionRecord `json:"rows"`
	Sort      SortSpec                 `json:"sort"`
	Index     int                      `json:"page"`
	Size      int                      `json:"page_size"`
	PageCount int                      `json:"page_count"`
	Total     int                      `json:"total"`

	// From and To are 1-based display offsets ("showing From to To of Total").
	// Both are 0 when the page is empty.
	From int `json:"from"`
	To   int `json:"to"`

	HasPrev bool  `json:"has_prev"`
	HasNext bool  `json:"has_next"`
	Links   []int `json:"links"`
}

// View slices an already sorted record set according to s.
func View(sorted []types.PredictionRecord, s State) Page {
	total := len(sorted)
	count := PageCount(total, s.Page.Size)
	rows := Paginate(sorted, s.Page)

	p := Page{
		Rows:      rows,
		Sort:      s.Sort,
		Index:     s.Page.Index,
		Size:      s.Page.Size,
		PageCount: count,
		Total:     total,
		HasPrev:   s.Page.Index > 0 && count > 0,
		HasNext:   s.Page.Index < count-1,
		Links:     PagerLinks(s.Page.Index, count),
	}
	if len(rows) > 0 {
		start, end := s.Page.Bounds(total)
		p.From, p.To = start+1, end
	}
	return p
}
