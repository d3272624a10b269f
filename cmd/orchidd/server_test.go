package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orchidcore/internal/assets"
	"orchidcore/internal/core"
	blobmemory "orchidcore/internal/infra/blob/memory"
	"orchidcore/internal/infra/logging"
	"orchidcore/internal/infra/persistence/memory"
	"orchidcore/pkg/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc, err := core.NewService(store, core.NewMemoryBank(), core.Config{
		Operator:     "op",
		Oracle:       "orc",
		PromotionEnd: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	catalog := assets.NewCatalog(blobmemory.New())
	mux := http.NewServeMux()
	newServer(svc, catalog, logging.NewJSON("orchidd-test", io.Discard)).routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMintLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	// Minting before the sale opens conflicts.
	resp := postJSON(t, ts.URL+"/mint", map[string]any{"caller": "alice", "units": 1, "payment_wei": core.DefaultMintPrice})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before sale, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Only the operator can open it.
	resp = postJSON(t, ts.URL+"/admin/start-sale", map[string]any{"caller": "alice"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	for _, path := range []string{"/admin/start-sale", "/admin/start-growing"} {
		resp = postJSON(t, ts.URL+path, map[string]any{"caller": "op"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Short payment is a payment error.
	resp = postJSON(t, ts.URL+"/mint", map[string]any{"caller": "alice", "units": 2, "payment_wei": core.DefaultMintPrice})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for short payment, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/mint", map[string]any{"caller": "alice", "units": 1, "payment_wei": core.DefaultMintPrice})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var mint struct {
		Tokens []domain.TokenID `json:"tokens"`
	}
	decodeBody(t, resp, &mint)
	if len(mint.Tokens) != 1 || mint.Tokens[0] != 1 {
		t.Fatalf("unexpected tokens %v", mint.Tokens)
	}

	// Germinate opens the oracle round-trip.
	resp = postJSON(t, ts.URL+"/orchids/1/germinate", map[string]any{"caller": "alice", "seed": 7})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var germ struct {
		RequestID string `json:"request_id"`
	}
	decodeBody(t, resp, &germ)
	if germ.RequestID == "" {
		t.Fatalf("expected request id")
	}

	// Non-oracle fulfillment is forbidden; the oracle's succeeds.
	resp = postJSON(t, ts.URL+"/oracle/fulfill", map[string]any{"caller": "alice", "request_id": germ.RequestID, "random": 1})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/oracle/fulfill", map[string]any{"caller": "orc", "request_id": germ.RequestID, "random": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The orchid read-model now carries the assigned species and stage.
	getResp, err := http.Get(ts.URL + "/orchids/1")
	if err != nil {
		t.Fatalf("get orchid: %v", err)
	}
	var orchid struct {
		Species domain.Species     `json:"species"`
		Stage   domain.GrowthStage `json:"stage"`
	}
	decodeBody(t, getResp, &orchid)
	if orchid.Species != domain.SpeciesMothOrchid {
		t.Fatalf("unexpected species %+v", orchid.Species)
	}
	if orchid.Stage != domain.StageFlowering {
		t.Fatalf("unexpected stage %s", orchid.Stage)
	}

	// Watering during the grace period conflicts.
	resp = postJSON(t, ts.URL+"/orchids/1/water", map[string]any{"caller": "alice"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 during grace, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Owner token listing.
	listResp, err := http.Get(ts.URL + "/orchids?owner=alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var owned struct {
		Tokens []domain.TokenID `json:"tokens"`
	}
	decodeBody(t, listResp, &owned)
	if len(owned.Tokens) != 1 {
		t.Fatalf("unexpected owned tokens %v", owned.Tokens)
	}
}

func TestPromotionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/promotion")
	if err != nil {
		t.Fatalf("get promotion: %v", err)
	}
	var promo struct {
		CycleID string `json:"cycle_id"`
		Open    bool   `json:"open"`
	}
	decodeBody(t, resp, &promo)
	if promo.CycleID != "1" || !promo.Open {
		t.Fatalf("unexpected promotion state %+v", promo)
	}

	resp, err = http.Get(ts.URL + "/promotion/eligibility?address=alice")
	if err != nil {
		t.Fatalf("get eligibility: %v", err)
	}
	var elig struct {
		Tokens []domain.TokenID `json:"tokens"`
	}
	decodeBody(t, resp, &elig)
	if len(elig.Tokens) != 0 {
		t.Fatalf("expected no eligibility, got %v", elig.Tokens)
	}

	// Selecting a winner before the promotion ends conflicts.
	post := postJSON(t, ts.URL+"/promotion/select-winner", map[string]any{"caller": "op", "seed": 1})
	if post.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before end, got %d", post.StatusCode)
	}
	post.Body.Close()
}

func TestArtworkEndpoint(t *testing.T) {
	ts := newTestServer(t)

	url := fmt.Sprintf("%s/artwork?common=%s&latin=%s&stage=flowering", ts.URL, "moth+orchid", "phalaenopsis+micholitzii")
	resp, err := http.Post(url, "image/png", bytes.NewReader([]byte("png-bytes")))
	if err != nil {
		t.Fatalf("post artwork: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Republish conflicts.
	resp, err = http.Post(url, "image/png", bytes.NewReader([]byte("other")))
	if err != nil {
		t.Fatalf("post artwork: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
