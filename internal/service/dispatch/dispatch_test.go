package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/repository/memory"
)

var (
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
)

func driverActor(id string) domain.Actor { return domain.Actor{ID: id, Role: domain.RoleDriver} }

type capture struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *capture) Publish(_ context.Context, evs ...events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, evs...)
}

func (c *capture) types() []events.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Type, 0, len(c.evs))
	for _, e := range c.evs {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	pub      *capture
	outcomes *prometheus.CounterVec
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		pub:      &capture{},
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "outcomes"}, []string{"op", "result"}),
		clock:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.pub, Config{OfferTTL: time.Minute, OperationTimeout: time.Second}, logx.Nop(), f.outcomes, nil)
	f.svc.now = func() time.Time { return f.clock }
	seq := 0
	f.svc.newID = func() string { seq++; return fmt.Sprintf("as-%d", seq) }
	return f
}

func (f *fixture) seed(t *testing.T, fn func(ctx context.Context, tx dispatchtx.Repository) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.WithTx(ctx, func(tx dispatchtx.Repository) error { return fn(ctx, tx) }))
}

func (f *fixture) addVehicle(t *testing.T, id string, capacity float64, loc *domain.Location) {
	f.seed(t, func(ctx context.Context, tx dispatchtx.Repository) error {
		return tx.SaveVehicle(ctx, &domain.Vehicle{
			ID: id, Registration: "KA01" + id, Type: domain.VehicleTypeVan,
			CapacityKg: capacity, Status: domain.VehicleAvailable, Location: loc,
		})
	})
}

func (f *fixture) addDriver(t *testing.T, id string, status domain.DriverStatus, lastAssigned *time.Time) {
	f.seed(t, func(ctx context.Context, tx dispatchtx.Repository) error {
		return tx.SaveDriver(ctx, &domain.Driver{ID: id, Name: id, Status: status, LastAssignedAt: lastAssigned})
	})
}

func (f *fixture) addOrder(t *testing.T, id string, weight float64) {
	f.seed(t, func(ctx context.Context, tx dispatchtx.Repository) error {
		if err := tx.SaveOrder(ctx, &domain.Order{
			ID:         id,
			CustomerID: customer.ID,
			Pickup:     domain.Location{Lat: 12.9716, Lng: 77.5946, Address: "MG Road"},
			Drop:       domain.Location{Lat: 12.9352, Lng: 77.6245, Address: "Koramangala"},
			Package:    domain.Package{Description: "parcel", WeightKg: weight},
			Payment:    domain.Payment{Amount: domain.Money{Amount: 25000, Currency: "INR"}, Method: domain.PaymentCash},
			Status:     domain.OrderPending,
		}); err != nil {
			return err
		}
		return tx.AppendTimeline(ctx, domain.TimelineEntry{OrderID: id, Seq: 1, To: domain.OrderPending, Actor: customer})
	})
}

func (f *fixture) state(t *testing.T, orderID, vehicleID string) (*domain.Order, *domain.Vehicle) {
	t.Helper()
	var (
		o *domain.Order
		v *domain.Vehicle
	)
	ctx := context.Background()
	require.NoError(t, f.store.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		if o, err = tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		v, err = tx.GetVehicle(ctx, vehicleID)
		return err
	}))
	return o, v
}

func (f *fixture) balance(t *testing.T, driverID string) int64 {
	t.Helper()
	var w *domain.Wallet
	ctx := context.Background()
	require.NoError(t, f.store.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		w, err = tx.GetWallet(ctx, driverID)
		return err
	}))
	if w == nil {
		return 0
	}
	return w.Balance.Amount
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()
	d1 := driverActor("d1")

	a, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentOffered, a.State)
	require.Equal(t, f.clock.Add(time.Minute), a.ExpiresAt)
	o, v := f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderAssigned, o.Status)
	require.Equal(t, a.ID, o.AssignmentID)
	require.Equal(t, domain.VehicleInUse, v.Status)
	require.Equal(t, "d1", v.AssignedDriverID)

	_, err = f.svc.Accept(ctx, admin, a.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	a, err = f.svc.Accept(ctx, d1, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentAccepted, a.State)
	o, _ = f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderOnRoute, o.Status)

	_, err = f.svc.PickUp(ctx, admin, a.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.PickUp(ctx, d1, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, admin, a.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.Zero(t, f.balance(t, "d1"))

	a, err = f.svc.Complete(ctx, d1, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCompleted, a.State)
	o, v = f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderDelivered, o.Status)
	require.Equal(t, domain.VehicleAvailable, v.Status)
	require.Empty(t, v.AssignedDriverID)
	require.EqualValues(t, 25000, f.balance(t, "d1"))

	var tl []domain.TimelineEntry
	require.NoError(t, f.store.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		tl, err = tx.Timeline(ctx, "o1")
		return err
	}))
	got := make([]domain.OrderStatus, 0, len(tl))
	for i, e := range tl {
		require.Equal(t, i+1, e.Seq)
		got = append(got, e.To)
	}
	require.Equal(t, []domain.OrderStatus{
		domain.OrderPending, domain.OrderAssigned, domain.OrderOnRoute, domain.OrderPickedUp, domain.OrderDelivered,
	}, got)

	require.Contains(t, f.pub.types(), events.WalletCredited)
	require.EqualValues(t, 1, testutil.ToFloat64(f.outcomes.WithLabelValues("complete", "ok")))
}

func TestAssign_ConcurrentSameVehicle(t *testing.T) {
	t.Parallel()

	const n = 10
	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	for i := 0; i < n; i++ {
		f.addDriver(t, fmt.Sprintf("d%d", i), domain.DriverApproved, nil)
		f.addOrder(t, fmt.Sprintf("o%d", i), 5)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		results = make([]error, n)
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.Assign(context.Background(), admin, fmt.Sprintf("o%d", i), fmt.Sprintf("d%d", i), "v1")
			results[i] = err
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, ok)
	for _, err := range results {
		if err != nil {
			require.ErrorIs(t, err, apperr.ErrVehicleUnavailable)
		}
	}

	active, err := f.svc.ListActive(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestAssign_Preconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addVehicle(t, "small", 30, nil)
	f.addVehicle(t, "v2", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addDriver(t, "pending", domain.DriverPending, nil)
	f.addOrder(t, "o1", 10)
	f.addOrder(t, "o2", 10)
	f.addOrder(t, "heavy", 50)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, driverActor("d1"), "o1", "d1", "v1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Assign(ctx, admin, "missing", "d1", "v1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Assign(ctx, admin, "o1", "pending", "v1")
	require.ErrorIs(t, err, apperr.ErrDriverUnavailable)

	_, err = f.svc.Assign(ctx, admin, "heavy", "d1", "small")
	require.ErrorIs(t, err, apperr.ErrVehicleUnavailable)

	// nothing was written by the failed attempts
	_, v := f.state(t, "heavy", "small")
	require.Equal(t, domain.VehicleAvailable, v.Status)

	_, err = f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, admin, "o1", "d1", "v2")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Assign(ctx, admin, "o2", "d1", "v2")
	require.ErrorIs(t, err, apperr.ErrDriverUnavailable)
}

func TestComplete_CreditsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()
	d1 := driverActor("d1")

	a, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, d1, a.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Accept(ctx, d1, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, d1, a.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState, "order must be picked up first")

	_, err = f.svc.PickUp(ctx, d1, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, driverActor("d2"), a.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Complete(ctx, d1, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, d1, a.ID)
	require.NoError(t, err)

	require.EqualValues(t, 25000, f.balance(t, "d1"))
	credited := 0
	for _, typ := range f.pub.types() {
		if typ == events.WalletCredited {
			credited++
		}
	}
	require.Equal(t, 1, credited)

	var d *domain.Driver
	require.NoError(t, f.store.View(ctx, func(tx dispatchtx.Repository) error {
		d, err = tx.GetDriver(ctx, "d1")
		return err
	}))
	require.EqualValues(t, 1, d.Deliveries)
}

func TestReject_ReleasesAndExcludes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()

	a, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, driverActor("d2"), a.ID, "busy")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	a, err = f.svc.Reject(ctx, driverActor("d1"), a.ID, "too far")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentRejected, a.State)
	require.Equal(t, "too far", a.Reason)

	o, v := f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderPending, o.Status)
	require.Empty(t, o.AssignmentID)
	require.Equal(t, domain.VehicleAvailable, v.Status)

	// only d1 is approved and it just rejected this order
	_, err = f.svc.AutoMatch(ctx, admin, "o1")
	require.ErrorIs(t, err, apperr.ErrNoCandidates)
	require.EqualValues(t, 1, testutil.ToFloat64(f.outcomes.WithLabelValues("auto_match", "no_candidates")))

	// the skip lasts for one attempt
	again, err := f.svc.AutoMatch(ctx, admin, "o1")
	require.NoError(t, err)
	require.Equal(t, "d1", again.DriverID)

	_, err = f.svc.Accept(ctx, driverActor("d1"), a.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	// admins may decline for the driver, and a manual assign may still pick it
	_, err = f.svc.Reject(ctx, admin, again.ID, "driver called in")
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)
}

func TestAutoMatch_SkipsRejectingDriverOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	earlier := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addDriver(t, "d2", domain.DriverApproved, &earlier)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()

	first, err := f.svc.AutoMatch(ctx, domain.SystemActor, "o1")
	require.NoError(t, err)
	require.Equal(t, "d1", first.DriverID)
	_, err = f.svc.Reject(ctx, driverActor("d1"), first.ID, "")
	require.NoError(t, err)

	second, err := f.svc.AutoMatch(ctx, domain.SystemActor, "o1")
	require.NoError(t, err)
	require.Equal(t, "d2", second.DriverID)
	_, err = f.svc.Reject(ctx, driverActor("d2"), second.ID, "")
	require.NoError(t, err)

	// d2 is skipped now and d1 is back in the pool
	third, err := f.svc.AutoMatch(ctx, domain.SystemActor, "o1")
	require.NoError(t, err)
	require.Equal(t, "d1", third.DriverID)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()

	a, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, domain.Actor{ID: "someone", Role: domain.RoleCustomer}, a.ID, "changed mind")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	a, err = f.svc.Cancel(ctx, customer, a.ID, "changed mind")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCancelled, a.State)

	o, v := f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderCancelled, o.Status)
	require.Equal(t, "changed mind", o.CancelReason)
	require.Equal(t, domain.VehicleAvailable, v.Status)
	require.Zero(t, f.balance(t, "d1"))

	_, err = f.svc.Cancel(ctx, admin, a.ID, "again")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestExpireOffers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addVehicle(t, "v2", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addDriver(t, "d2", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	f.addOrder(t, "o2", 10)
	ctx := context.Background()

	stale, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)
	f.clock = f.clock.Add(30 * time.Second)
	fresh, err := f.svc.Assign(ctx, admin, "o2", "d2", "v2")
	require.NoError(t, err)

	n, err := f.svc.ExpireOffers(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	f.clock = f.clock.Add(45 * time.Second)
	n, err = f.svc.ExpireOffers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, admin, stale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentExpired, got.State)
	o, v := f.state(t, "o1", "v1")
	require.Equal(t, domain.OrderPending, o.Status)
	require.Equal(t, domain.VehicleAvailable, v.Status)

	_, err = f.svc.Accept(ctx, driverActor("d1"), stale.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.svc.Accept(ctx, driverActor("d2"), fresh.ID)
	require.NoError(t, err)
}

func TestAutoMatch_TieBreaks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	near := &domain.Location{Lat: 12.9720, Lng: 77.5950}
	far := &domain.Location{Lat: 13.1986, Lng: 77.7066}
	f.addVehicle(t, "v-far", 100, far)
	f.addVehicle(t, "v-near", 100, near)
	f.addVehicle(t, "v-small", 5, near)
	f.addVehicle(t, "v-unknown", 100, nil)

	earlier := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	f.addDriver(t, "d-recent", domain.DriverApproved, &later)
	f.addDriver(t, "d-old", domain.DriverApproved, &earlier)
	f.addDriver(t, "d-new", domain.DriverApproved, nil)
	f.addDriver(t, "d-pending", domain.DriverPending, nil)
	f.addOrder(t, "o1", 10)
	f.addOrder(t, "o2", 10)
	ctx := context.Background()

	_, err := f.svc.AutoMatch(ctx, customer, "o1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	a, err := f.svc.AutoMatch(ctx, domain.SystemActor, "o1")
	require.NoError(t, err)
	require.Equal(t, "v-near", a.VehicleID)
	require.Equal(t, "d-new", a.DriverID)
	require.Equal(t, domain.SystemActor, a.AssignedBy)

	a, err = f.svc.AutoMatch(ctx, domain.SystemActor, "o2")
	require.NoError(t, err)
	require.Equal(t, "v-far", a.VehicleID)
	require.Equal(t, "d-old", a.DriverID)
}

func TestQueries_Access(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addVehicle(t, "v1", 100, nil)
	f.addDriver(t, "d1", domain.DriverApproved, nil)
	f.addOrder(t, "o1", 10)
	ctx := context.Background()

	a, err := f.svc.Assign(ctx, admin, "o1", "d1", "v1")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, customer, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, driverActor("d2"), a.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.Get(ctx, admin, "missing")
	require.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := f.svc.ListByDriver(ctx, driverActor("d1"), "d1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = f.svc.ListByDriver(ctx, driverActor("d2"), "d1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.ListActive(ctx, customer)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
