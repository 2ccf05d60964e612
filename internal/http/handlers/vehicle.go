package handlers

import (
	"net/http"
	"strconv"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// VehicleHandler serves the fleet registry.
type VehicleHandler struct {
	uc     fleetUsecase
	logger logx.Logger
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(logger logx.Logger, uc fleetUsecase) *VehicleHandler {
	return &VehicleHandler{uc: uc, logger: logger}
}

// Register handles POST /vehicles.
func (h *VehicleHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	var req registerVehicleRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	v, err := h.uc.RegisterVehicle(r.Context(), actor, req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/vehicles/"+v.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, vehicleToResponse(v))
}

// List handles GET /vehicles?type=&status=.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.VehicleFilter{
		Type:   domain.VehicleType(q.Get("type")),
		Status: domain.VehicleStatus(q.Get("status")),
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid type")
		return
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := h.uc.List(r.Context(), f)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vehiclesToResponse(list))
}

// Available handles GET /vehicles/available?type=&min_capacity=.
func (h *VehicleHandler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var minCapacity float64
	if s := q.Get("min_capacity"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid min_capacity")
			return
		}
		minCapacity = v
	}

	list, err := h.uc.GetAvailable(r.Context(), domain.VehicleType(q.Get("type")), minCapacity)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vehiclesToResponse(list))
}

// Get handles GET /vehicles/{id}.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	v, err := h.uc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vehicleToResponse(v))
}

// SetStatus handles PUT /vehicles/{id}/status.
func (h *VehicleHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req vehicleStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	v, err := h.uc.SetStatus(r.Context(), actor, id, domain.VehicleStatus(req.Status))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vehicleToResponse(v))
}

// UpdateLocation handles PUT /vehicles/{id}/location.
func (h *VehicleHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(r, "id")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req locationDTO
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	v, err := h.uc.UpdateLocation(r.Context(), actor, id, req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vehicleToResponse(v))
}
