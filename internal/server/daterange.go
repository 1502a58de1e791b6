package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/parlatrack/parlatrack/internal/storage"
)

// dateRange is the resolved [Since, Until] window of a listing request.
// Nil bounds do not filter.
type dateRange struct {
	Since *time.Time
	Until *time.Time
}

// parseDateRange resolves the date portion of a listing request. Clients can
// give explicit since/until bounds (RFC 3339 or plain dates), a calendar
// hint (y, m, dom) that expands to the covered span, or an
// If-Modified-Since header acting as an additional lower bound. A window
// that cannot match anything reports errRangeUnsatisfiable.
func parseDateRange(r *http.Request) (dateRange, error) {
	var d dateRange
	q := r.URL.Query()

	if raw := q.Get("since"); raw != "" {
		t, err := parseTimeParam(raw, false)
		if err != nil {
			return d, err
		}
		d.Since = &t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := parseTimeParam(raw, true)
		if err != nil {
			return d, err
		}
		d.Until = &t
	}

	if raw := q.Get("y"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return d, &storage.ValidationError{Err: fmt.Errorf("invalid year %q", raw)}
		}
		from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		if raw := q.Get("m"); raw != "" {
			month, err := strconv.Atoi(raw)
			if err != nil || month < 1 || month > 12 {
				return d, &storage.ValidationError{Err: fmt.Errorf("invalid month %q", raw)}
			}
			from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			to = from.AddDate(0, 1, 0)
			if raw := q.Get("dom"); raw != "" {
				day, err := strconv.Atoi(raw)
				if err != nil || day < 1 || day > 31 {
					return d, &storage.ValidationError{Err: fmt.Errorf("invalid day %q", raw)}
				}
				from = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
				to = from.AddDate(0, 0, 1)
			}
		}
		d.tighten(&from, &to)
	}

	if raw := r.Header.Get("If-Modified-Since"); raw != "" {
		t, err := http.ParseTime(raw)
		if err != nil {
			return d, &storage.ValidationError{Err: fmt.Errorf("invalid If-Modified-Since header")}
		}
		d.tighten(&t, nil)
	}

	if d.Since != nil && d.Until != nil && d.Since.After(*d.Until) {
		return d, errRangeUnsatisfiable
	}
	// A lower bound in the future can never match stored history either.
	if d.Since != nil && d.Since.After(time.Now()) {
		return d, errRangeUnsatisfiable
	}
	return d, nil
}

// tighten narrows the window; upper bounds from hints are exclusive, so a
// nanosecond is shaved off before storing.
func (d *dateRange) tighten(from, to *time.Time) {
	if from != nil && (d.Since == nil || from.After(*d.Since)) {
		t := *from
		d.Since = &t
	}
	if to != nil {
		t := to.Add(-time.Nanosecond)
		if d.Until == nil || t.Before(*d.Until) {
			d.Until = &t
		}
	}
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates. A plain date
// used as an upper bound covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, &storage.ValidationError{Err: fmt.Errorf("invalid timestamp %q", raw)}
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
