package handlers

import (
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// OrderHandler serves the order ledger.
type OrderHandler struct {
	uc     orderUsecase
	logger logx.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(logger logx.Logger, uc orderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, logger: logger}
}

// Place handles POST /orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	o, err := h.uc.PlaceOrder(r.Context(), actor, req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, orderToResponse(o))
}

// List handles GET /orders?status=&customer_id=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		list []domain.Order
		err  error
	)
	if customerID := q.Get("customer_id"); customerID != "" {
		list, err = h.uc.ListByCustomer(r.Context(), actor, customerID)
	} else {
		list, err = h.uc.ListByStatus(r.Context(), actor, domain.OrderStatus(q.Get("status")))
	}
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ordersToResponse(list))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	o, err := h.uc.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(o))
}

// Timeline handles GET /orders/{id}/timeline.
func (h *OrderHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	list, err := h.uc.Timeline(r.Context(), actor, id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, timelineToResponse(list))
}

// Transition handles POST /orders/{id}/transition.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req transitionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	to := domain.OrderStatus(req.To)
	if !to.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
		return
	}

	o, err := h.uc.Transition(r.Context(), actor, id, to, req.Note)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(o))
}
