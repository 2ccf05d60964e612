package handlers

import "service-dispatch/internal/domain"

func (l locationDTO) toModel() domain.Location {
	return domain.Location{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

func locationToResponse(l domain.Location) locationDTO {
	return locationDTO{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

func (m moneyDTO) toModel() domain.Money {
	return domain.Money{Amount: m.Amount, Currency: m.Currency}
}

func moneyToResponse(m domain.Money) moneyDTO {
	return moneyDTO{Amount: m.Amount, Currency: m.Currency}
}

func (r registerVehicleRequest) toModel() domain.VehicleSpec {
	spec := domain.VehicleSpec{
		Registration: r.Registration,
		Type:         domain.VehicleType(r.Type),
		CapacityKg:   r.CapacityKg,
	}
	if r.Location != nil {
		loc := r.Location.toModel()
		spec.Location = &loc
	}
	return spec
}

func vehicleToResponse(v *domain.Vehicle) vehicleDTO {
	out := vehicleDTO{
		ID:               v.ID,
		Registration:     v.Registration,
		Type:             string(v.Type),
		CapacityKg:       v.CapacityKg,
		Status:           string(v.Status),
		AssignedDriverID: v.AssignedDriverID,
		Version:          v.Version,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
	if v.Location != nil {
		loc := locationToResponse(*v.Location)
		out.Location = &loc
	}
	return out
}

func vehiclesToResponse(list []domain.Vehicle) []vehicleDTO {
	out := make([]vehicleDTO, 0, len(list))
	for i := range list {
		out = append(out, vehicleToResponse(&list[i]))
	}
	return out
}

func (r registerDriverRequest) toModel() domain.DriverSpec {
	return domain.DriverSpec{
		Name:                r.Name,
		Phone:               r.Phone,
		Email:               r.Email,
		LicenseNumber:       r.LicenseNumber,
		VehicleRegistration: r.VehicleRegistration,
	}
}

func driverToResponse(d *domain.Driver) driverDTO {
	return driverDTO{
		ID:                  d.ID,
		Name:                d.Name,
		Phone:               d.Phone,
		Email:               d.Email,
		LicenseNumber:       d.LicenseNumber,
		VehicleRegistration: d.VehicleRegistration,
		Status:              string(d.Status),
		Rating:              d.Rating,
		Deliveries:          d.Deliveries,
		LastAssignedAt:      d.LastAssignedAt,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
	}
}

func driversToResponse(list []domain.Driver) []driverDTO {
	out := make([]driverDTO, 0, len(list))
	for i := range list {
		out = append(out, driverToResponse(&list[i]))
	}
	return out
}

func (r placeOrderRequest) toModel() domain.OrderSpec {
	return domain.OrderSpec{
		CustomerID: r.CustomerID,
		Pickup:     r.Pickup.toModel(),
		Drop:       r.Drop.toModel(),
		Package:    domain.Package{Description: r.Package.Description, WeightKg: r.Package.WeightKg},
		Payment: domain.Payment{
			Amount: r.Payment.Amount.toModel(),
			Method: domain.PaymentMethod(r.Payment.Method),
		},
	}
}

func orderToResponse(o *domain.Order) orderDTO {
	return orderDTO{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Pickup:     locationToResponse(o.Pickup),
		Drop:       locationToResponse(o.Drop),
		Package:    packageDTO{Description: o.Package.Description, WeightKg: o.Package.WeightKg},
		Payment: paymentDTO{
			Amount: moneyToResponse(o.Payment.Amount),
			Method: string(o.Payment.Method),
		},
		Status:       string(o.Status),
		AssignmentID: o.AssignmentID,
		DriverID:     o.DriverID,
		VehicleID:    o.VehicleID,
		CancelReason: o.CancelReason,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func ordersToResponse(list []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(list))
	for i := range list {
		out = append(out, orderToResponse(&list[i]))
	}
	return out
}

func timelineToResponse(list []domain.TimelineEntry) []timelineEntryDTO {
	out := make([]timelineEntryDTO, 0, len(list))
	for _, e := range list {
		out = append(out, timelineEntryDTO{
			Seq:       e.Seq,
			From:      string(e.From),
			To:        string(e.To),
			ActorID:   e.Actor.ID,
			ActorRole: string(e.Actor.Role),
			At:        e.At,
			Note:      e.Note,
		})
	}
	return out
}

func assignmentToResponse(a *domain.Assignment) assignmentDTO {
	return assignmentDTO{
		ID:          a.ID,
		OrderID:     a.OrderID,
		DriverID:    a.DriverID,
		VehicleID:   a.VehicleID,
		State:       string(a.State),
		OfferedAt:   a.OfferedAt,
		ExpiresAt:   a.ExpiresAt,
		RespondedAt: a.RespondedAt,
		ClosedAt:    a.ClosedAt,
		AssignedBy:  a.AssignedBy.ID,
		Reason:      a.Reason,
		Version:     a.Version,
	}
}

func assignmentsToResponse(list []domain.Assignment) []assignmentDTO {
	out := make([]assignmentDTO, 0, len(list))
	for i := range list {
		out = append(out, assignmentToResponse(&list[i]))
	}
	return out
}

func walletToResponse(w *domain.Wallet) walletDTO {
	return walletDTO{DriverID: w.DriverID, Balance: moneyToResponse(w.Balance), Version: w.Version}
}

func transactionToResponse(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:           t.ID,
		DriverID:     t.DriverID,
		Kind:         string(t.Kind),
		Amount:       moneyToResponse(t.Amount),
		OrderID:      t.OrderID,
		AssignmentID: t.AssignmentID,
		Destination:  t.Destination,
		BalanceAfter: moneyToResponse(t.BalanceAfter),
		CreatedAt:    t.CreatedAt,
	}
}

func transactionsToResponse(list []domain.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(list))
	for i := range list {
		out = append(out, transactionToResponse(&list[i]))
	}
	return out
}
