package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// captureSink records notification events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureSink) Notify(e notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) byKind(k notify.Kind) []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Event
	for _, e := range c.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func newTestStorage(t *testing.T) (*SQLiteStorage, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"), Options{Sink: sink})
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, sink
}

var testCollector = storage.Collector{KeyID: 1, Scraper: "test-scraper"}

func strptr(s string) *string { return &s }

func intptr(n int) *int { return &n }

var testStart = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func testDokument(hash string) *types.Dokument {
	return &types.Dokument{
		Typ:           types.DoktypEntwurf,
		Titel:         "Entwurf eines Gesetzes",
		Volltext:      "volltext",
		Link:          "https://example.org/" + hash + ".pdf",
		Hash:          hash,
		ZPReferenz:    testStart,
		ZPModifiziert: testStart,
	}
}

func testStation(hash string) types.Station {
	return types.Station{
		Typ:       types.StationstypParlInitiativ,
		ZPStart:   testStart,
		Parlament: types.ParlamentBT,
		Dokumente: []types.DokRef{{Dokument: testDokument(hash)}},
	}
}

func testVorgang(apiID string) *types.Vorgang {
	return &types.Vorgang{
		APIID:       apiID,
		Titel:       "Gesetz zur Modernisierung",
		Wahlperiode: 20,
		Typ:         types.VorgangstypGGEinspruch,
		IDs:         []types.VgIdent{{ID: "20/123", Typ: types.VgIdentTypInitdrucks}},
		Stationen:   []types.Station{testStation("aaaa0001")},
	}
}

func countRows(t *testing.T, s *SQLiteStorage, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
