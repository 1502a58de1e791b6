package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/storage/sqlite"
	"github.com/parlatrack/parlatrack/internal/types"
)

type testEnv struct {
	srv       *httptest.Server
	store     storage.Storage
	adminKey  string
	collector string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), sqlite.Options{})
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	adminKey, err := store.CreateKey(context.Background(), auth.ScopeAdmin, 0, nil)
	if err != nil {
		t.Fatalf("failed to create admin key: %v", err)
	}
	collectorKey, err := store.CreateKey(context.Background(), auth.ScopeCollector, 0, nil)
	if err != nil {
		t.Fatalf("failed to create collector key: %v", err)
	}

	s := New(zap.NewNop(), store, Options{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, adminKey: adminKey, collector: collectorKey}
}

func (e *testEnv) do(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
		req.Header.Set("X-Scraper-Id", "test-scraper")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func apiVorgang(apiID string) *types.Vorgang {
	return &types.Vorgang{
		APIID:       apiID,
		Titel:       "Testgesetz",
		Wahlperiode: 20,
		Typ:         types.VorgangstypGGEinspruch,
		IDs:         []types.VgIdent{{ID: "20/555", Typ: types.VgIdentTypInitdrucks}},
		Stationen: []types.Station{{
			Typ:       types.StationstypParlInitiativ,
			ZPStart:   time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
			Parlament: types.ParlamentBT,
			Dokumente: []types.DokRef{{Dokument: &types.Dokument{
				Typ:           types.DoktypEntwurf,
				Titel:         "Entwurf",
				Hash:          "feed0001",
				Link:          "https://example.org/feed0001.pdf",
				ZPReferenz:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
				ZPModifiziert: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			}}},
		}},
	}
}

func TestPingOpen(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, "GET", "/ping", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWriteRequiresKey(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, "PUT", "/api/v1/vorgang", "", apiVorgang("d0000000-0000-0000-0000-000000000001"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp = e.do(t, "PUT", "/api/v1/vorgang", "not-a-real-key", apiVorgang("d0000000-0000-0000-0000-000000000001"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", resp.StatusCode)
	}
}

func TestCollectorPushAndRead(t *testing.T) {
	e := newTestEnv(t)
	v := apiVorgang("d0000000-0000-0000-0000-000000000002")

	resp := e.do(t, "PUT", "/api/v1/vorgang", e.collector, v)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var pushed struct {
		APIID string `json:"api_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pushed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if pushed.APIID != v.APIID {
		t.Errorf("expected api_id %s, got %s", v.APIID, pushed.APIID)
	}

	resp = e.do(t, "GET", "/api/v1/vorgang/"+v.APIID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got types.Vorgang
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode vorgang: %v", err)
	}
	if got.Titel != v.Titel || len(got.Stationen) != 1 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// v2 serves the same content.
	resp = e.do(t, "GET", "/api/v2/vorgang/"+v.APIID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on v2, got %d", resp.StatusCode)
	}
}

func TestCollectorCannotEditByID(t *testing.T) {
	e := newTestEnv(t)
	v := apiVorgang("d0000000-0000-0000-0000-000000000003")
	if resp := e.do(t, "PUT", "/api/v1/vorgang", e.collector, v); resp.StatusCode != http.StatusCreated {
		t.Fatalf("push failed: %d", resp.StatusCode)
	}

	resp := e.do(t, "PUT", "/api/v1/vorgang/"+v.APIID, e.collector, v)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = e.do(t, "DELETE", "/api/v1/vorgang/"+v.APIID, e.collector, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d", resp.StatusCode)
	}
}

func TestPutByIDLifecycle(t *testing.T) {
	e := newTestEnv(t)
	v := apiVorgang("d0000000-0000-0000-0000-000000000004")

	resp := e.do(t, "PUT", "/api/v1/vorgang/"+v.APIID, e.adminKey, v)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Reading back and re-putting the identical object is a no-op.
	resp = e.do(t, "GET", "/api/v1/vorgang/"+v.APIID, "", nil)
	var stored types.Vorgang
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	resp = e.do(t, "PUT", "/api/v1/vorgang/"+v.APIID, e.adminKey, &stored)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for unchanged payload, got %d", resp.StatusCode)
	}

	stored.Titel = "Geändert"
	resp = e.do(t, "PUT", "/api/v1/vorgang/"+v.APIID, e.adminKey, &stored)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = e.do(t, "DELETE", "/api/v1/vorgang/"+v.APIID, e.adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = e.do(t, "GET", "/api/v1/vorgang/"+v.APIID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAmbiguousPushConflicts(t *testing.T) {
	e := newTestEnv(t)

	a := apiVorgang("d0000000-0000-0000-0000-00000000000a")
	a.IDs = []types.VgIdent{{ID: "20/1", Typ: types.VgIdentTypInitdrucks}}
	a.Stationen[0].Dokumente[0].Dokument.Hash = "hash-a"
	b := apiVorgang("d0000000-0000-0000-0000-00000000000b")
	b.IDs = []types.VgIdent{{ID: "20/2", Typ: types.VgIdentTypInitdrucks}}
	b.Stationen[0].Dokumente[0].Dokument.Hash = "hash-b"
	for _, v := range []*types.Vorgang{a, b} {
		if resp := e.do(t, "PUT", "/api/v1/vorgang", e.collector, v); resp.StatusCode != http.StatusCreated {
			t.Fatalf("push failed: %d", resp.StatusCode)
		}
	}

	p := apiVorgang("d0000000-0000-0000-0000-00000000000c")
	p.IDs = []types.VgIdent{
		{ID: "20/1", Typ: types.VgIdentTypInitdrucks},
		{ID: "20/2", Typ: types.VgIdentTypInitdrucks},
	}
	p.Stationen = nil
	resp := e.do(t, "PUT", "/api/v1/vorgang", e.collector, p)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListPaginationHeaders(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 3; i++ {
		v := apiVorgang(fmt.Sprintf("d0000000-0000-0000-0000-0000000001%02d", i))
		v.IDs = []types.VgIdent{{ID: fmt.Sprintf("20/9%02d", i), Typ: types.VgIdentTypInitdrucks}}
		v.Stationen[0].Dokumente[0].Dokument.Hash = fmt.Sprintf("list-hash-%d", i)
		if resp := e.do(t, "PUT", "/api/v1/vorgang", e.collector, v); resp.StatusCode != http.StatusCreated {
			t.Fatalf("push %d failed: %d", i, resp.StatusCode)
		}
	}

	resp := e.do(t, "GET", "/api/v1/vorgang?per_page=2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Total-Count") != "3" || resp.Header.Get("X-Total-Pages") != "2" {
		t.Errorf("unexpected pagination headers: %v", resp.Header)
	}
	var list []*types.Vorgang
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected page of 2, got %d", len(list))
	}
}

func TestListEmptyResult(t *testing.T) {
	e := newTestEnv(t)

	// Nothing matches: a plain listing has no body to send.
	resp := e.do(t, "GET", "/api/v1/vorgang?wp=99", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for empty result, got %d", resp.StatusCode)
	}

	// The same miss on a conditional request means "nothing new".
	req, err := http.NewRequest("GET", e.srv.URL+"/api/v1/vorgang?wp=99", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("If-Modified-Since", "Mon, 02 Jan 2006 15:04:05 GMT")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304 for conditional empty result, got %d", resp.StatusCode)
	}

	resp = e.do(t, "GET", "/api/v1/sitzung?wp=99", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for empty sitzung result, got %d", resp.StatusCode)
	}
}

func TestFutureSinceUnsatisfiable(t *testing.T) {
	e := newTestEnv(t)
	since := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	resp := e.do(t, "GET", "/api/v1/vorgang?since="+since, "", nil)
	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416 for future lower bound, got %d", resp.StatusCode)
	}
}

func TestKeyadderCannotPush(t *testing.T) {
	e := newTestEnv(t)
	keyadderKey, err := e.store.CreateKey(context.Background(), auth.ScopeKeyAdder, 0, nil)
	if err != nil {
		t.Fatalf("failed to create keyadder key: %v", err)
	}

	v := apiVorgang("d0000000-0000-0000-0000-000000000301")
	resp := e.do(t, "PUT", "/api/v1/vorgang", keyadderKey, v)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for keyadder push, got %d", resp.StatusCode)
	}
	if resp := e.do(t, "PUT", "/api/v1/vorgang", e.adminKey, v); resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin push expected 201, got %d", resp.StatusCode)
	}
}

func TestEnumEndpoints(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "GET", "/api/v1/enumeration/parlamente", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var values []string
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(values) == 0 {
		t.Error("expected seeded parliaments")
	}

	body := map[string]any{"objects": []string{"klima"}}
	resp = e.do(t, "PUT", "/api/v1/enumeration/schlagworte", e.adminKey, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = e.do(t, "PUT", "/api/v1/enumeration/schlagworte", e.adminKey, body)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
	resp = e.do(t, "PUT", "/api/v1/enumeration/schlagworte", e.collector, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for collector, got %d", resp.StatusCode)
	}
	resp = e.do(t, "GET", "/api/v1/enumeration/farben", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown enumeration, got %d", resp.StatusCode)
	}
	resp = e.do(t, "DELETE", "/api/v1/enumeration/schlagworte/klima", e.adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestKalenderCollectorWindow(t *testing.T) {
	e := newTestEnv(t)
	sz := types.Sitzung{
		Termin:  time.Now().UTC().Add(24 * time.Hour),
		Gremium: types.Gremium{Name: "Plenum", Parlament: types.ParlamentBT, Wahlperiode: 20},
		Nummer:  1,
		Public:  true,
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	resp := e.do(t, "PUT", "/api/v1/kalender/BT/"+tomorrow, e.collector, []types.Sitzung{sz})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Collectors must not rewrite settled history.
	lastWeek := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	resp = e.do(t, "PUT", "/api/v1/kalender/BT/"+lastWeek, e.collector, []types.Sitzung{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = e.do(t, "PUT", "/api/v1/kalender/BT/"+lastWeek, e.adminKey, []types.Sitzung{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin rewrite expected 200, got %d", resp.StatusCode)
	}

	resp = e.do(t, "GET", "/api/v1/kalender/BT/"+tomorrow, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got []*types.Sitzung
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}

	resp = e.do(t, "GET", "/api/v1/kalender/XX/"+tomorrow, "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown parlament, got %d", resp.StatusCode)
	}
}

func TestKeyEndpoints(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "POST", "/api/v1/auth", e.adminKey, createKeyRequest{Scope: auth.ScopeCollector})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created createKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if created.Key == "" || created.Keytag != auth.Keytag(created.Key) {
		t.Errorf("unexpected key response: %+v", created)
	}

	// The fresh collector key authenticates.
	v := apiVorgang("d0000000-0000-0000-0000-000000000201")
	if resp := e.do(t, "PUT", "/api/v1/vorgang", created.Key, v); resp.StatusCode != http.StatusCreated {
		t.Fatalf("push with new key failed: %d", resp.StatusCode)
	}

	resp = e.do(t, "DELETE", "/api/v1/auth/"+created.Keytag, e.adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := e.do(t, "PUT", "/api/v1/vorgang", created.Key, v); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key must fail with 401, got %d", resp.StatusCode)
	}

	// Collectors cannot mint keys.
	resp = e.do(t, "POST", "/api/v1/auth", e.collector, createKeyRequest{Scope: auth.ScopeCollector})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
