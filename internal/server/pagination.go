package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/parlatrack/parlatrack/internal/storage"
)

const (
	defaultPerPage = 32
	maxPerPage     = 256
)

// pageRequest is the parsed paging portion of a listing request. Pages are
// 1-based.
type pageRequest struct {
	Page    int
	PerPage int
}

func (p pageRequest) offset() int { return (p.Page - 1) * p.PerPage }

func parsePagination(r *http.Request) (pageRequest, error) {
	p := pageRequest{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, &storage.ValidationError{Err: fmt.Errorf("invalid page %q", raw)}
		}
		p.Page = n
	}
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, &storage.ValidationError{Err: fmt.Errorf("invalid per_page %q", raw)}
		}
		if n > maxPerPage {
			n = maxPerPage
		}
		p.PerPage = n
	}
	return p, nil
}

func parseIntParam(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &storage.ValidationError{Err: fmt.Errorf("invalid %s %q", name, raw)}
	}
	return n, nil
}

// writePaginationHeaders sets the count headers and an RFC 5988 Link header
// with first/prev/next/last relations.
func writePaginationHeaders(w http.ResponseWriter, r *http.Request, p pageRequest, total int) {
	pages := (total + p.PerPage - 1) / p.PerPage
	if pages == 0 {
		pages = 1
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Total-Pages", strconv.Itoa(pages))
	w.Header().Set("X-Page", strconv.Itoa(p.Page))
	w.Header().Set("X-Per-Page", strconv.Itoa(p.PerPage))

	link := func(page int, rel string) string {
		u := *r.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(p.PerPage))
		u.RawQuery = q.Encode()
		return fmt.Sprintf("<%s>; rel=%q", (&url.URL{Path: u.Path, RawQuery: u.RawQuery}).String(), rel)
	}

	parts := []string{link(1, "first"), link(pages, "last")}
	if p.Page > 1 {
		parts = append(parts, link(p.Page-1, "prev"))
	}
	if p.Page < pages {
		parts = append(parts, link(p.Page+1, "next"))
	}
	w.Header().Set("Link", strings.Join(parts, ", "))
}
