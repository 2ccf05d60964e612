package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// AssignmentHandler serves the assignment coordinator.
type AssignmentHandler struct {
	uc     dispatchUsecase
	logger logx.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(logger logx.Logger, uc dispatchUsecase) *AssignmentHandler {
	return &AssignmentHandler{uc: uc, logger: logger}
}

// Assign handles POST /assignments.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	var req assignRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.OrderID == "" || req.DriverID == "" || req.VehicleID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "order_id, driver_id and vehicle_id are required")
		return
	}

	a, err := h.uc.Assign(r.Context(), actor, req.OrderID, req.DriverID, req.VehicleID)
	h.created(w, r, a, err)
}

// AutoAssign handles POST /assignments/auto.
func (h *AssignmentHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	var req autoAssignRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.OrderID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "order_id is required")
		return
	}

	a, err := h.uc.AutoMatch(r.Context(), actor, req.OrderID)
	h.created(w, r, a, err)
}

func (h *AssignmentHandler) created(w http.ResponseWriter, r *http.Request, a *domain.Assignment, err error) {
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/assignments/"+a.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, assignmentToResponse(a))
}

// List handles GET /assignments?driver_id=. Without a driver it lists active assignments.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	var (
		list []domain.Assignment
		err  error
	)
	if driverID := r.URL.Query().Get("driver_id"); driverID != "" {
		list, err = h.uc.ListByDriver(r.Context(), actor, driverID)
	} else {
		list, err = h.uc.ListActive(r.Context(), actor)
	}
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentsToResponse(list))
}

// Get handles GET /assignments/{id}.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.uc.Get)
}

// Accept handles POST /assignments/{id}/accept.
func (h *AssignmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.uc.Accept)
}

// PickUp handles POST /assignments/{id}/pickup.
func (h *AssignmentHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.uc.PickUp)
}

// Complete handles POST /assignments/{id}/complete.
func (h *AssignmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.uc.Complete)
}

// Reject handles POST /assignments/{id}/reject with an optional {"reason":""} body.
func (h *AssignmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, h.uc.Reject)
}

// Cancel handles POST /assignments/{id}/cancel with an optional {"reason":""} body.
func (h *AssignmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, h.uc.Cancel)
}

type assignmentCmd func(ctx context.Context, actor domain.Actor, id string) (*domain.Assignment, error)

func (h *AssignmentHandler) act(w http.ResponseWriter, r *http.Request, fn assignmentCmd) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	a, err := fn(r.Context(), actor, id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(a))
}

func (h *AssignmentHandler) actWithReason(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Assignment, error)) {
	var req reasonRequest
	if r.Body != nil {
		if ok := decodeOptionalJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	h.act(w, r, func(ctx context.Context, actor domain.Actor, id string) (*domain.Assignment, error) {
		return fn(ctx, actor, id, req.Reason)
	})
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid body")
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return decodeJSON(logger, w, r, dst)
}
