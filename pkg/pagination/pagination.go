package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// Default returns the pagination defaults (page 1, 20 per page).
func Default() Params {
	return Params{Page: 1, PerPage: defaultPerPage}
}

// Parse extracts page and per_page from the request query. Invalid values
// are rejected rather than silently replaced, so callers can return a 400
// naming the bad parameter.
func Parse(r *http.Request) (Params, error) {
	p := Default()

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = page
	}

	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > maxPerPage {
			return Params{}, fmt.Errorf("per_page must be an integer between 1 and %d", maxPerPage)
		}
		p.PerPage = perPage
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p, nil
}

// Slice returns the half-open index range [lo, hi) that the params select
// from a list of n elements. Pages past the end yield an empty range.
func (p Params) Slice(n int) (int, int) {
	lo := p.Offset
	if lo > n {
		lo = n
	}
	hi := lo + p.PerPage
	if hi > n {
		hi = n
	}
	return lo, hi
}
