package entity

import "math"

// MaxPage keeps Offset inside a 32-bit int at MaxPerPage
const MaxPage = math.MaxInt32 / MaxPerPage

// Pagination is a 1-based page request
type Pagination struct {
	Page    int
	PerPage int
}

// Normalize clamps PerPage into [1, MaxPerPage] and Page into [1, MaxPage].
// Zero PerPage means DefaultPerPage.
func (p Pagination) Normalize() Pagination {
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage < 1 {
		p.PerPage = 1
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

// Offset returns the row offset for the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Page is one page of a listing
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

// NewPage assembles a page from items and the total count
func NewPage[T any](items []T, total int, p Pagination) Page[T] {
	last := 1
	if total > 0 {
		last = (total + p.PerPage - 1) / p.PerPage
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PerPage: p.PerPage, LastPage: last}
}
