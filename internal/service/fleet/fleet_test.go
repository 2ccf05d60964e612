package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/repository/memory"
	testlog "service-dispatch/internal/testutil"
)

var admin = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, evs...)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.evs))
	for _, e := range p.evs {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	svc := NewService(store, pub, time.Second, logx.Nop())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC) }
	return svc, store, pub
}

func TestRegisterVehicle(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: " ka-01-ab-1234 ", Type: domain.VehicleTypeVan, CapacityKg: 500})
	require.NoError(t, err)
	require.Equal(t, "KA-01-AB-1234", v.Registration)
	require.Equal(t, domain.VehicleAvailable, v.Status)
	require.EqualValues(t, 1, v.Version)

	_, err = svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "KA-01-AB-1234", Type: domain.VehicleTypeCar, CapacityKg: 100})
	require.ErrorIs(t, err, apperr.ErrDuplicateRegistration)
}

func TestRegisterVehicle_Validation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]domain.VehicleSpec{
		"empty registration": {Type: domain.VehicleTypeBike, CapacityKg: 10},
		"bad type":           {Registration: "X", Type: "boat", CapacityKg: 10},
		"zero capacity":      {Registration: "X", Type: domain.VehicleTypeBike},
		"bad location":       {Registration: "X", Type: domain.VehicleTypeBike, CapacityKg: 10, Location: &domain.Location{Lat: 100}},
	}
	for name, spec := range cases {
		_, err := svc.RegisterVehicle(ctx, admin, spec)
		require.ErrorIs(t, err, apperr.ErrInvalid, name)
	}

	_, err := svc.RegisterVehicle(ctx, domain.Actor{ID: "c1", Role: domain.RoleCustomer},
		domain.VehicleSpec{Registration: "X", Type: domain.VehicleTypeBike, CapacityKg: 10})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	svc, store, pub := newTestService(t)
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "KA-02", Type: domain.VehicleTypeCar, CapacityKg: 200})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, admin, "missing", domain.VehicleMaintenance)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.SetStatus(ctx, admin, v.ID, domain.VehicleInUse)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err := svc.SetStatus(ctx, admin, v.ID, domain.VehicleMaintenance)
	require.NoError(t, err)
	require.Equal(t, domain.VehicleMaintenance, got.Status)
	require.Equal(t, []events.Type{events.VehicleStatusChanged}, pub.types())

	// bind the vehicle behind the service's back
	require.NoError(t, store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.SaveAssignment(ctx, &domain.Assignment{ID: "a1", VehicleID: v.ID, DriverID: "d1", State: domain.AssignmentOffered})
	}))

	_, err = svc.SetStatus(ctx, admin, v.ID, domain.VehicleAvailable)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSetStatus_SameStatusIsNoop(t *testing.T) {
	t.Parallel()

	svc, _, pub := newTestService(t)
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "KA-03", Type: domain.VehicleTypeBike, CapacityKg: 20})
	require.NoError(t, err)

	got, err := svc.SetStatus(ctx, admin, v.ID, domain.VehicleAvailable)
	require.NoError(t, err)
	require.Equal(t, v.Version, got.Version)
	require.Empty(t, pub.types())
}

func TestGetAvailable_FiltersByCapacityAndType(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	small, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "S-1", Type: domain.VehicleTypeBike, CapacityKg: 30})
	require.NoError(t, err)
	big, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "B-1", Type: domain.VehicleTypeTruck, CapacityKg: 2000})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, admin, small.ID, domain.VehicleAvailable)
	require.NoError(t, err)

	list, err := svc.GetAvailable(ctx, "", 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, big.ID, list[0].ID)

	list, err = svc.GetAvailable(ctx, domain.VehicleTypeBike, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, small.ID, list[0].ID)

	_, err = svc.GetAvailable(ctx, "boat", 0)
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestUpdateLocation_OnlyBoundDriverOrAdmin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	v, err := svc.RegisterVehicle(ctx, admin, domain.VehicleSpec{Registration: "L-1", Type: domain.VehicleTypeCar, CapacityKg: 100})
	require.NoError(t, err)

	loc := domain.Location{Lat: 19.07, Lng: 72.87}
	_, err = svc.UpdateLocation(ctx, domain.Actor{ID: "d9", Role: domain.RoleDriver}, v.ID, loc)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := svc.UpdateLocation(ctx, admin, v.ID, loc)
	require.NoError(t, err)
	require.Equal(t, 19.07, got.Location.Lat)

	_, err = svc.UpdateLocation(ctx, admin, v.ID, domain.Location{})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestRegisterVehicle_LogsEvent(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	svc := NewService(memory.NewStore(), nil, time.Second, rec.Logger())

	_, err := svc.RegisterVehicle(context.Background(), admin, domain.VehicleSpec{Registration: "LG-1", Type: domain.VehicleTypeVan, CapacityKg: 400})
	require.NoError(t, err)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "info", entries[0].Level)
	require.Contains(t, entries[0].Fields, logx.String("event", "vehicle_registered"))
}
