package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"orchidcore/internal/assets"
	"orchidcore/internal/core"
	"orchidcore/pkg/domain"
)

// server exposes the service over a JSON HTTP API.
type server struct {
	svc     *core.Service
	catalog *assets.Catalog
	logger  core.Logger
}

func newServer(svc *core.Service, catalog *assets.Catalog, logger core.Logger) *server {
	return &server{svc: svc, catalog: catalog, logger: logger}
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /orchids/{id}", s.handleOrchid)
	mux.HandleFunc("GET /orchids/{id}/stage", s.handleStage)
	mux.HandleFunc("GET /orchids", s.handleTokensOf)
	mux.HandleFunc("POST /mint", s.handleMint)
	mux.HandleFunc("POST /orchids/{id}/germinate", s.handleGerminate)
	mux.HandleFunc("POST /orchids/{id}/water", s.handleWater)
	mux.HandleFunc("POST /oracle/fulfill", s.handleFulfill)
	mux.HandleFunc("GET /promotion", s.handlePromotion)
	mux.HandleFunc("GET /promotion/eligibility", s.handleEligibility)
	mux.HandleFunc("POST /promotion/enter", s.handleEnter)
	mux.HandleFunc("POST /promotion/redeem", s.handleRedeem)
	mux.HandleFunc("POST /promotion/select-winner", s.handleSelectWinner)
	mux.HandleFunc("POST /promotion/withdraw-winner", s.handleWithdrawWinner)
	mux.HandleFunc("POST /admin/start-sale", s.handleStartSale)
	mux.HandleFunc("POST /admin/start-growing", s.handleStartGrowing)
	mux.HandleFunc("POST /admin/reset", s.handleReset)
	mux.HandleFunc("POST /admin/fund", s.handleFund)
	mux.HandleFunc("POST /admin/fund-fees", s.handleFundFees)
	mux.HandleFunc("POST /admin/withdraw-unclaimed", s.handleWithdrawUnclaimed)
	mux.HandleFunc("POST /admin/withdraw-proceeds", s.handleWithdrawProceeds)
	mux.HandleFunc("POST /artwork", s.handlePublishArtwork)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRequest), errors.Is(err, domain.ErrAlreadyFulfilled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientPayment), errors.Is(err, domain.ErrNoFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrBalanceExceeded), errors.Is(err, domain.ErrNotYetEligible), errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("encode response", "error", err.Error())
		}
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func tokenIDFromPath(r *http.Request) (domain.TokenID, error) {
	raw := r.PathValue("id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid token id")
	}
	return domain.TokenID(n), nil
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orchidResponse struct {
	domain.OrchidMetadata
	ArtworkURL string `json:"artwork_url,omitempty"`
}

func (s *server) handleOrchid(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDFromPath(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	meta, err := s.svc.Metadata(id)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	resp := orchidResponse{OrchidMetadata: meta}
	if s.catalog != nil && !meta.Species.IsZero() {
		if url, err := s.catalog.Resolve(r.Context(), meta.Species, meta.Stage); err == nil {
			resp.ArtworkURL = url
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleStage(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDFromPath(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	stage, err := s.svc.Stage(id)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"stage": string(stage)})
}

func (s *server) handleTokensOf(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.URL.Query().Get("owner"))
	if addr == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner query parameter required"})
		return
	}
	tokens := s.svc.TokensOf(addr)
	if tokens == nil {
		tokens = []domain.TokenID{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"owner": addr, "tokens": tokens})
}

func (s *server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  domain.Address `json:"caller"`
		Units   int            `json:"units"`
		Payment domain.Amount  `json:"payment_wei"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	minted, _, err := s.svc.Mint(r.Context(), req.Caller, req.Units, req.Payment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids := make([]domain.TokenID, 0, len(minted))
	for _, o := range minted {
		ids = append(ids, o.TokenID)
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"tokens": ids})
}

func (s *server) handleGerminate(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDFromPath(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req struct {
		Caller domain.Address `json:"caller"`
		Seed   uint64         `json:"seed"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	requestID, _, err := s.svc.Germinate(r.Context(), req.Caller, id, req.Seed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

func (s *server) handleWater(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDFromPath(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	orchid, _, err := s.svc.Water(r.Context(), req.Caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"token_id": orchid.TokenID, "water_level": orchid.WaterLevel})
}

func (s *server) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    domain.Address `json:"caller"`
		RequestID string         `json:"request_id"`
		Random    uint64         `json:"random"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.svc.FulfillRandomness(r.Context(), req.Caller, req.RequestID, req.Random); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"request_id": req.RequestID, "status": "fulfilled"})
}

func (s *server) handlePromotion(w http.ResponseWriter, _ *http.Request) {
	winner, selected := s.svc.Winner()
	payload := map[string]any{
		"cycle_id": s.svc.CycleID(),
		"pot_wei":  s.svc.Pot(),
		"open":     s.svc.PromotionOpen(),
	}
	if selected {
		payload["winner"] = winner
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.URL.Query().Get("address"))
	if addr == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address query parameter required"})
		return
	}
	tokens, amount, err := s.svc.CheckEligibility(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tokens == nil {
		tokens = []domain.TokenID{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens, "rebate_wei": amount})
}

func (s *server) handleEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	entered, _, err := s.svc.Enter(r.Context(), req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entered == nil {
		entered = []domain.TokenID{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entered": entered, "entries": s.svc.AddressEntriesCount(req.Caller)})
}

func (s *server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	paid, tokens, _, err := s.svc.Redeem(r.Context(), req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"paid_wei": paid, "tokens": tokens})
}

func (s *server) handleSelectWinner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
		Seed   uint64         `json:"seed"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	requestID, _, err := s.svc.SelectWinner(r.Context(), req.Caller, req.Seed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

func (s *server) handleWithdrawWinner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	paid, _, err := s.svc.WithdrawWinner(r.Context(), req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"paid_wei": paid})
}

func (s *server) handleStartSale(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, s.svc.StartSale)
}

func (s *server) handleStartGrowing(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, s.svc.StartGrowing)
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller domain.Address) (domain.Result, error)) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := op(r.Context(), req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	controls := s.svc.Controls()
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"sale_started":    controls.SaleStarted,
		"growing_started": controls.GrowingStarted,
	})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       domain.Address `json:"caller"`
		PromotionEnd time.Time      `json:"promotion_end"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.svc.Reset(r.Context(), req.Caller, req.PromotionEnd); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"cycle_id": s.svc.CycleID()})
}

func (s *server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount domain.Amount `json:"amount_wei"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.svc.Fund(r.Context(), req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"balance_wei": s.svc.Accounts().Balance})
}

func (s *server) handleFundFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount domain.Amount `json:"amount_wei"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.svc.FundFees(r.Context(), req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fee_reserve_wei": s.svc.Accounts().FeeReserve})
}

func (s *server) handleWithdrawUnclaimed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	swept, _, err := s.svc.WithdrawUnclaimed(r.Context(), req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"swept_wei": swept})
}

func (s *server) handleWithdrawProceeds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	swept, _, err := s.svc.WithdrawProceeds(r.Context(), req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"swept_wei": swept})
}

func (s *server) handlePublishArtwork(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "artwork catalog not configured"})
		return
	}
	q := r.URL.Query()
	species := domain.Species{CommonName: q.Get("common"), LatinName: q.Get("latin")}
	stage := domain.GrowthStage(q.Get("stage"))
	if species.CommonName == "" || stage == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "common and stage query parameters required"})
		return
	}
	info, err := s.catalog.Publish(r.Context(), species, stage, r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}
