package server

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parlatrack/parlatrack/internal/storage"
)

func TestParseDateRangeExplicitBounds(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang?since=2025-01-01&until=2025-03-31", nil)
	d, err := parseDateRange(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Since == nil || !d.Since.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected since: %v", d.Since)
	}
	// A plain until date covers the whole day.
	if d.Until == nil || d.Until.Before(time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("unexpected until: %v", d.Until)
	}
}

func TestParseDateRangeCalendarHints(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/sitzung?y=2025&m=2", nil)
	d, err := parseDateRange(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Since == nil || !d.Since.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected since: %v", d.Since)
	}
	if d.Until == nil || !d.Until.Before(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("until must stay within february: %v", d.Until)
	}

	r = httptest.NewRequest("GET", "/api/v1/sitzung?y=2025&m=2&dom=14", nil)
	d, err = parseDateRange(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Since == nil || d.Since.Day() != 14 {
		t.Errorf("unexpected since: %v", d.Since)
	}
}

func TestParseDateRangeUnsatisfiable(t *testing.T) {
	// The hint window ends before the explicit lower bound.
	r := httptest.NewRequest("GET", "/api/v1/sitzung?since=2025-06-01&y=2024", nil)
	if _, err := parseDateRange(r); !errors.Is(err, errRangeUnsatisfiable) {
		t.Fatalf("expected errRangeUnsatisfiable, got %v", err)
	}

	// A lower bound in the future can never match stored history.
	future := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	r = httptest.NewRequest("GET", "/api/v1/vorgang?since="+future, nil)
	if _, err := parseDateRange(r); !errors.Is(err, errRangeUnsatisfiable) {
		t.Fatalf("expected errRangeUnsatisfiable for future since, got %v", err)
	}
}

func TestParseDateRangeIfModifiedSince(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/vorgang", nil)
	r.Header.Set("If-Modified-Since", "Wed, 01 Jan 2025 00:00:00 GMT")
	d, err := parseDateRange(r)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Since == nil || d.Since.Year() != 2025 {
		t.Errorf("header must act as lower bound: %v", d.Since)
	}
}

func TestParseDateRangeInvalid(t *testing.T) {
	var vErr *storage.ValidationError
	r := httptest.NewRequest("GET", "/api/v1/vorgang?since=gestern", nil)
	if _, err := parseDateRange(r); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	r = httptest.NewRequest("GET", "/api/v1/sitzung?y=2025&m=13", nil)
	if _, err := parseDateRange(r); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
