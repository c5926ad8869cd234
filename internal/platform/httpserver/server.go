package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	royaltyledger "treehauz/contexts/finance-core/royalty-ledger"
	ledgererrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
	ledgerhttp "treehauz/contexts/finance-core/royalty-ledger/transport/http"
	accessguard "treehauz/contexts/identity-access/access-guard"
	guarddomain "treehauz/contexts/identity-access/access-guard/domain/entities"
	guarderrors "treehauz/contexts/identity-access/access-guard/domain/errors"
	guardhttp "treehauz/contexts/identity-access/access-guard/transport/http"
	tradingservice "treehauz/contexts/marketplace-trading/trading-service"
	tradingerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	tradinghttp "treehauz/contexts/marketplace-trading/trading-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "treehauz/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	trading tradingservice.Module
	ledger  royaltyledger.Module
	guard   accessguard.Module
}

func New(
	trading tradingservice.Module,
	ledger royaltyledger.Module,
	guardModule accessguard.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		trading: trading,
		ledger:  ledger,
		guard:   guardModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/market/listings", s.handleCreateListing)
	s.mux.HandleFunc("GET /v1/market/listings", s.handleListListings)
	s.mux.HandleFunc("GET /v1/market/listings/{listing_id}", s.handleGetListing)
	s.mux.HandleFunc("PATCH /v1/market/listings/{listing_id}", s.handleUpdateListing)
	s.mux.HandleFunc("DELETE /v1/market/listings/{listing_id}", s.handleRemoveListing)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/purchase", s.handlePurchase)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/offers", s.handlePlaceOffer)
	s.mux.HandleFunc("GET /v1/market/listings/{listing_id}/offers", s.handleListOffers)
	s.mux.HandleFunc("DELETE /v1/market/listings/{listing_id}/offers/{offeror}", s.handleCancelOffer)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/offers/{offeror}/accept", s.handleAcceptOffer)

	s.mux.HandleFunc("GET /v1/market/accounts/{owner}", s.handleGetAccount)
	s.mux.HandleFunc("POST /v1/market/claims/sales", s.handleClaimSales)
	s.mux.HandleFunc("POST /v1/market/claims/royalty", s.handleClaimRoyalty)

	s.mux.HandleFunc("PUT /v1/admin/fee", s.handleUpdateFee)
	s.mux.HandleFunc("PUT /v1/admin/pause", s.handleSetMarketPaused)
	s.mux.HandleFunc("PUT /v1/admin/sellers/{seller}/pause", s.handleSetSellerPaused)
	s.mux.HandleFunc("POST /v1/admin/roles/grant", s.handleGrantRole)
	s.mux.HandleFunc("POST /v1/admin/roles/revoke", s.handleRevokeRole)
	s.mux.HandleFunc("POST /v1/admin/tokens/reset-royalty", s.handleResetTokenRoyalty)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req tradinghttp.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.trading.Handler.CreateListingHandler(r.Context(), userID, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if limitRaw := query.Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeMarketError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.trading.Handler.ListListingsHandler(
		r.Context(),
		query.Get("owner"),
		query.Get("cursor"),
		limit,
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}
	resp, err := s.trading.Handler.GetListingHandler(r.Context(), listingID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	var req tradinghttp.UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.trading.Handler.UpdateListingHandler(r.Context(), userID, listingID, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveListing(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	if err := s.trading.Handler.RemoveListingHandler(r.Context(), userID, listingID); err != nil {
		writeMarketDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	var req tradinghttp.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.trading.Handler.PurchaseHandler(r.Context(), userID, listingID, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlaceOffer(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	var req tradinghttp.PlaceOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.trading.Handler.PlaceOfferHandler(r.Context(), userID, listingID, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}
	resp, err := s.trading.Handler.ListOffersHandler(r.Context(), listingID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	resp, err := s.trading.Handler.CancelOfferHandler(r.Context(), userID, listingID, r.PathValue("offeror"))
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	listingID, ok := parseListingID(w, r)
	if !ok {
		return
	}

	resp, err := s.trading.Handler.AcceptOfferHandler(r.Context(), userID, listingID, r.PathValue("offeror"))
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.GetAccountHandler(r.Context(), r.PathValue("owner"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimSales(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ledger.Handler.ClaimSalesHandler(r.Context(), userID)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimRoyalty(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ledger.Handler.ClaimRoyaltyHandler(r.Context(), userID)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.UpdateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.ledger.Handler.UpdateFeeHandler(r.Context(), userID, req); err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMarketPaused(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGuardError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req guardhttp.PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.guard.Service.SetMarketPaused(r.Context(), userID, req.Paused); err != nil {
		writeGuardDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSellerPaused(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGuardError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req guardhttp.PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.guard.Service.SetSellerPaused(r.Context(), userID, r.PathValue("seller"), req.Paused); err != nil {
		writeGuardDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGuardError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req guardhttp.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.guard.Service.GrantRole(r.Context(), userID, req.Account, guarddomain.Role(req.Role)); err != nil {
		writeGuardDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGuardError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req guardhttp.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGuardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.guard.Service.RevokeRole(r.Context(), userID, req.Account, guarddomain.Role(req.Role)); err != nil {
		writeGuardDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetTokenRoyalty(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.ResetTokenRoyaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.ledger.Handler.ResetTokenRoyaltyHandler(r.Context(), userID, req); err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListingID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	listingID, err := strconv.ParseUint(r.PathValue("listing_id"), 10, 64)
	if err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_listing_id", "listing_id must be an unsigned integer")
		return 0, false
	}
	return listingID, true
}

func writeMarketDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tradingerrors.ErrListingNotFound),
		errors.Is(err, tradingerrors.ErrOfferNotFound):
		writeMarketError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tradingerrors.ErrListingConflict):
		writeMarketError(w, http.StatusConflict, "listing_conflict", err.Error())
	case errors.Is(err, tradingerrors.ErrNotListingOwner),
		errors.Is(err, tradingerrors.ErrNotOfferParticipant):
		writeMarketError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, tradingerrors.ErrPriceBelowFloor),
		errors.Is(err, tradingerrors.ErrZeroQuantity),
		errors.Is(err, tradingerrors.ErrInvalidReference),
		errors.Is(err, tradingerrors.ErrInvalidOfferAmount),
		errors.Is(err, tradingerrors.ErrInvalidPurchasePrice),
		errors.Is(err, tradingerrors.ErrOfferPriceMismatch):
		writeMarketError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, tradingerrors.ErrInsufficientBalance),
		errors.Is(err, tradingerrors.ErrInsufficientListingQuantity):
		writeMarketError(w, http.StatusConflict, "insufficient", err.Error())
	case errors.Is(err, tradingerrors.ErrReentrantCall):
		writeMarketError(w, http.StatusConflict, "reentrant_call", err.Error())
	case errors.Is(err, guarderrors.ErrMarketplacePaused),
		errors.Is(err, guarderrors.ErrSellerPaused):
		writeMarketError(w, http.StatusLocked, "paused", err.Error())
	default:
		writeMarketError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerDomainError(w http.ResponseWriter, err error) {
	var unclaimed *ledgererrors.UnclaimedRoyaltyError
	if errors.As(err, &unclaimed) {
		receivers := make([]ledgerhttp.ReceiverBalanceDTO, 0, len(unclaimed.Receivers))
		for _, receiver := range unclaimed.Receivers {
			receivers = append(receivers, ledgerhttp.ReceiverBalanceDTO{
				Account: receiver.Account,
				Amount:  receiver.Amount,
			})
		}
		writeJSON(w, http.StatusConflict, ledgerhttp.UnclaimedRoyaltyErrorResponse{
			Code:          "unclaimed_royalty",
			Message:       unclaimed.Error(),
			AssetContract: unclaimed.AssetContract,
			AssetID:       unclaimed.AssetID,
			Receivers:     receivers,
		})
		return
	}

	switch {
	case errors.Is(err, ledgererrors.ErrNothingToClaim):
		writeLedgerError(w, http.StatusConflict, "nothing_to_claim", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidFeeRate),
		errors.Is(err, ledgererrors.ErrInvalidReceiverSplit),
		errors.Is(err, ledgererrors.ErrInvalidAccount):
		writeLedgerError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, ledgererrors.ErrPoolNotFound):
		writeLedgerError(w, http.StatusNotFound, "pool_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrReentrantCall):
		writeLedgerError(w, http.StatusConflict, "reentrant_call", err.Error())
	case errors.Is(err, guarderrors.ErrRoleRequired):
		writeLedgerError(w, http.StatusForbidden, "role_required", err.Error())
	default:
		writeLedgerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGuardDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guarderrors.ErrRoleRequired):
		writeGuardError(w, http.StatusForbidden, "role_required", err.Error())
	case errors.Is(err, guarderrors.ErrUnknownRole),
		errors.Is(err, guarderrors.ErrInvalidAccount):
		writeGuardError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, guarderrors.ErrMarketplacePaused),
		errors.Is(err, guarderrors.ErrSellerPaused):
		writeGuardError(w, http.StatusLocked, "paused", err.Error())
	default:
		writeGuardError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMarketError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, tradinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeGuardError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, guardhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
