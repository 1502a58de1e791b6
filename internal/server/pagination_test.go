package server

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang", nil)
	p, err := parsePagination(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Page != 1 || p.PerPage != defaultPerPage {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.offset())
	}
}

func TestParsePaginationClampsPerPage(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang?page=3&per_page=9999", nil)
	p, err := parsePagination(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.PerPage != maxPerPage {
		t.Errorf("expected per_page clamped to %d, got %d", maxPerPage, p.PerPage)
	}
	if p.offset() != 2*maxPerPage {
		t.Errorf("unexpected offset %d", p.offset())
	}
}

func TestParsePaginationRejectsGarbage(t *testing.T) {
	for _, target := range []string{
		"/api/v1/vorgang?page=0",
		"/api/v1/vorgang?page=abc",
		"/api/v1/vorgang?per_page=-1",
	} {
		r := httptest.NewRequest("GET", target, nil)
		if _, err := parsePagination(r); err == nil {
			t.Errorf("%s: expected error", target)
		}
	}
}

func TestWritePaginationHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang?wp=20&page=2&per_page=10", nil)
	w := httptest.NewRecorder()
	writePaginationHeaders(w, r, pageRequest{Page: 2, PerPage: 10}, 35)

	h := w.Header()
	if h.Get("X-Total-Count") != "35" || h.Get("X-Total-Pages") != "4" {
		t.Errorf("unexpected count headers: %v", h)
	}
	link := h.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="last"`, `rel="prev"`, `rel="next"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("Link header missing %s: %s", rel, link)
		}
	}
	if !strings.Contains(link, "wp=20") {
		t.Errorf("Link header must preserve filters: %s", link)
	}
}

func TestWritePaginationHeadersLastPage(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang", nil)
	w := httptest.NewRecorder()
	writePaginationHeaders(w, r, pageRequest{Page: 1, PerPage: 32}, 0)

	if w.Header().Get("X-Total-Pages") != "1" {
		t.Errorf("empty result still has one page: %v", w.Header())
	}
	link := w.Header().Get("Link")
	if strings.Contains(link, `rel="next"`) || strings.Contains(link, `rel="prev"`) {
		t.Errorf("single page must not link next/prev: %s", link)
	}
}
