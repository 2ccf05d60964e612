package handlers

import (
	"net/http"

	"service-dispatch/internal/logx"
)

// WalletHandler serves driver wallets.
type WalletHandler struct {
	uc     walletUsecase
	logger logx.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(logger logx.Logger, uc walletUsecase) *WalletHandler {
	return &WalletHandler{uc: uc, logger: logger}
}

// Balance handles GET /wallets/{driverID}.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	driverID, ok := idFromURL(r, "driverID")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid driver id")
		return
	}
	wl, err := h.uc.Balance(r.Context(), actor, driverID)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, walletToResponse(wl))
}

// Transactions handles GET /wallets/{driverID}/transactions.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	driverID, ok := idFromURL(r, "driverID")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid driver id")
		return
	}
	list, err := h.uc.Transactions(r.Context(), actor, driverID)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, transactionsToResponse(list))
}

// Withdraw handles POST /wallets/{driverID}/withdrawals.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	driverID, ok := idFromURL(r, "driverID")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req withdrawalRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	t, err := h.uc.RequestWithdrawal(r.Context(), actor, driverID, req.Amount.toModel(), req.Destination)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, transactionToResponse(t))
}
