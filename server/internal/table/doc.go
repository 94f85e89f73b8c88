// Package table builds the sorted, paginated predictions table.
//
// Sort returns a stably ordered copy of a record set for a SortSpec. The
// "priority" key is an alias for predicted_rul_days; unknown keys leave the
// input order untouched.
//
// Paginate, PageCount, Next and Prev implement the fixed-size page window
// arithmetic. State bundles the caller-owned SortSpec and PageWindow and
// resets the page whenever the sort or the record set changes.
package table
