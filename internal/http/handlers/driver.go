package handlers

import (
	"context"
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// DriverHandler serves the driver registry.
type DriverHandler struct {
	uc     driverUsecase
	logger logx.Logger
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(logger logx.Logger, uc driverUsecase) *DriverHandler {
	return &DriverHandler{uc: uc, logger: logger}
}

// Register handles POST /drivers. Any authenticated actor may apply; approval is an admin decision.
func (h *DriverHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDriverRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.uc.Register(r.Context(), req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/drivers/"+d.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, driverToResponse(d))
}

// List handles GET /drivers?status=.
func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.uc.List(r.Context(), domain.DriverStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, driversToResponse(list))
}

// Get handles GET /drivers/{id}.
func (h *DriverHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	d, err := h.uc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, driverToResponse(d))
}

// Approve handles POST /drivers/{id}/approve.
func (h *DriverHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.uc.Approve)
}

// Reject handles POST /drivers/{id}/reject.
func (h *DriverHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.uc.Reject)
}

func (h *DriverHandler) decide(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor domain.Actor, id string) (*domain.Driver, error)) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	d, err := fn(r.Context(), actor, id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, driverToResponse(d))
}
