// Package memory is an in-process implementation of the dispatch storage
// contract. A single mutex serialises writers; each transaction stages its
// writes and applies them on commit, so a failed closure leaves no trace.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

var errReadOnly = errors.New("memory: write in read-only view")

type data struct {
	vehicles     map[string]*domain.Vehicle
	registration map[string]string
	drivers      map[string]*domain.Driver
	orders       map[string]*domain.Order
	timeline     map[string][]domain.TimelineEntry
	assignments  map[string]*domain.Assignment
	exclusions   map[string]map[string]bool
	wallets      map[string]*domain.Wallet
	transactions map[string][]domain.Transaction
	keys         map[string]domain.Transaction
}

func newData() *data {
	return &data{
		vehicles:     make(map[string]*domain.Vehicle),
		registration: make(map[string]string),
		drivers:      make(map[string]*domain.Driver),
		orders:       make(map[string]*domain.Order),
		timeline:     make(map[string][]domain.TimelineEntry),
		assignments:  make(map[string]*domain.Assignment),
		exclusions:   make(map[string]map[string]bool),
		wallets:      make(map[string]*domain.Wallet),
		transactions: make(map[string][]domain.Transaction),
		keys:         make(map[string]domain.Transaction),
	}
}

// Store keeps every aggregate in process memory.
type Store struct {
	mu sync.RWMutex
	db *data
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{db: newData()}
}

var _ dispatchtx.Runner = (*Store)(nil)

// WithTx runs fn while holding the write lock and applies its writes only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTx(s.db, false)
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	t.commit()
	return nil
}

// View runs fn under the read lock.
func (s *Store) View(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newTx(s.db, true))
}

type txRepo struct {
	base     *data
	readOnly bool

	vehicles     map[string]*domain.Vehicle
	drivers      map[string]*domain.Driver
	orders       map[string]*domain.Order
	assignments  map[string]*domain.Assignment
	wallets      map[string]*domain.Wallet
	timeline     []domain.TimelineEntry
	exclusions   []exclusionOp
	transactions []domain.Transaction
}

// exclusionOp is a staged exclusion write. An empty driverID clears the order.
type exclusionOp struct {
	orderID  string
	driverID string
}

func newTx(base *data, readOnly bool) *txRepo {
	return &txRepo{
		base:        base,
		readOnly:    readOnly,
		vehicles:    make(map[string]*domain.Vehicle),
		drivers:     make(map[string]*domain.Driver),
		orders:      make(map[string]*domain.Order),
		assignments: make(map[string]*domain.Assignment),
		wallets:     make(map[string]*domain.Wallet),
	}
}

func (t *txRepo) commit() {
	for id, v := range t.vehicles {
		t.base.vehicles[id] = v
		t.base.registration[v.Registration] = id
	}
	for id, d := range t.drivers {
		t.base.drivers[id] = d
	}
	for id, o := range t.orders {
		t.base.orders[id] = o
	}
	for id, a := range t.assignments {
		t.base.assignments[id] = a
	}
	for id, w := range t.wallets {
		t.base.wallets[id] = w
	}
	for _, e := range t.timeline {
		t.base.timeline[e.OrderID] = append(t.base.timeline[e.OrderID], e)
	}
	for _, ex := range t.exclusions {
		if ex.driverID == "" {
			delete(t.base.exclusions, ex.orderID)
			continue
		}
		set, ok := t.base.exclusions[ex.orderID]
		if !ok {
			set = make(map[string]bool)
			t.base.exclusions[ex.orderID] = set
		}
		set[ex.driverID] = true
	}
	for _, tr := range t.transactions {
		t.base.transactions[tr.DriverID] = append(t.base.transactions[tr.DriverID], tr)
		t.base.keys[tr.IdempotencyKey] = tr
	}
}

func (t *txRepo) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// Vehicles

func (t *txRepo) vehicle(id string) *domain.Vehicle {
	if v, ok := t.vehicles[id]; ok {
		return v
	}
	return t.base.vehicles[id]
}

func (t *txRepo) GetVehicle(_ context.Context, id string) (*domain.Vehicle, error) {
	v := t.vehicle(id)
	if v == nil {
		return nil, nil
	}
	return cloneVehicle(v), nil
}

func (t *txRepo) GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error) {
	for _, v := range t.vehicles {
		if v.Registration == registration {
			return cloneVehicle(v), nil
		}
	}
	id, ok := t.base.registration[registration]
	if !ok {
		return nil, nil
	}
	return t.GetVehicle(ctx, id)
}

func (t *txRepo) ListVehicles(_ context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error) {
	out := make([]domain.Vehicle, 0)
	for _, id := range unionKeys(t.base.vehicles, t.vehicles) {
		v := t.vehicle(id)
		if f.Match(v) {
			out = append(out, *cloneVehicle(v))
		}
	}
	return out, nil
}

func (t *txRepo) SaveVehicle(_ context.Context, v *domain.Vehicle) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur := t.vehicle(v.ID)
	if err := checkVersion(cur != nil, versionOf(cur), v.Version); err != nil {
		return fmt.Errorf("save vehicle %s: %w", v.ID, err)
	}
	if cur == nil {
		if id, ok := t.base.registration[v.Registration]; ok && id != v.ID {
			return fmt.Errorf("save vehicle %s: %w", v.ID, apperr.ErrDuplicateRegistration)
		}
		for id, staged := range t.vehicles {
			if staged.Registration == v.Registration && id != v.ID {
				return fmt.Errorf("save vehicle %s: %w", v.ID, apperr.ErrDuplicateRegistration)
			}
		}
	}
	v.Version++
	t.vehicles[v.ID] = cloneVehicle(v)
	return nil
}

// Drivers

func (t *txRepo) driver(id string) *domain.Driver {
	if d, ok := t.drivers[id]; ok {
		return d
	}
	return t.base.drivers[id]
}

func (t *txRepo) GetDriver(_ context.Context, id string) (*domain.Driver, error) {
	d := t.driver(id)
	if d == nil {
		return nil, nil
	}
	return cloneDriver(d), nil
}

func (t *txRepo) ListDrivers(_ context.Context, f domain.DriverFilter) ([]domain.Driver, error) {
	out := make([]domain.Driver, 0)
	for _, id := range unionKeys(t.base.drivers, t.drivers) {
		d := t.driver(id)
		if f.Status == "" || d.Status == f.Status {
			out = append(out, *cloneDriver(d))
		}
	}
	return out, nil
}

func (t *txRepo) SaveDriver(_ context.Context, d *domain.Driver) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur := t.driver(d.ID)
	var curVersion int64
	if cur != nil {
		curVersion = cur.Version
	}
	if err := checkVersion(cur != nil, curVersion, d.Version); err != nil {
		return fmt.Errorf("save driver %s: %w", d.ID, err)
	}
	d.Version++
	t.drivers[d.ID] = cloneDriver(d)
	return nil
}

// Orders

func (t *txRepo) order(id string) *domain.Order {
	if o, ok := t.orders[id]; ok {
		return o
	}
	return t.base.orders[id]
}

func (t *txRepo) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o := t.order(id)
	if o == nil {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (t *txRepo) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	for _, id := range unionKeys(t.base.orders, t.orders) {
		o := t.order(id)
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (t *txRepo) SaveOrder(_ context.Context, o *domain.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur := t.order(o.ID)
	var curVersion int64
	if cur != nil {
		curVersion = cur.Version
	}
	if err := checkVersion(cur != nil, curVersion, o.Version); err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}
	o.Version++
	t.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *txRepo) AppendTimeline(_ context.Context, e domain.TimelineEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.timeline = append(t.timeline, e)
	return nil
}

func (t *txRepo) Timeline(_ context.Context, orderID string) ([]domain.TimelineEntry, error) {
	base := t.base.timeline[orderID]
	out := make([]domain.TimelineEntry, 0, len(base))
	out = append(out, base...)
	for _, e := range t.timeline {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Assignments

func (t *txRepo) assignment(id string) *domain.Assignment {
	if a, ok := t.assignments[id]; ok {
		return a
	}
	return t.base.assignments[id]
}

func (t *txRepo) GetAssignment(_ context.Context, id string) (*domain.Assignment, error) {
	a := t.assignment(id)
	if a == nil {
		return nil, nil
	}
	return cloneAssignment(a), nil
}

func (t *txRepo) ListAssignments(_ context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	out := make([]domain.Assignment, 0)
	for _, id := range unionKeys(t.base.assignments, t.assignments) {
		a := t.assignment(id)
		if f.Match(a) {
			out = append(out, *cloneAssignment(a))
		}
	}
	return out, nil
}

func (t *txRepo) SaveAssignment(_ context.Context, a *domain.Assignment) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur := t.assignment(a.ID)
	var curVersion int64
	if cur != nil {
		curVersion = cur.Version
	}
	if err := checkVersion(cur != nil, curVersion, a.Version); err != nil {
		return fmt.Errorf("save assignment %s: %w", a.ID, err)
	}
	a.Version++
	t.assignments[a.ID] = cloneAssignment(a)
	return nil
}

func (t *txRepo) AddExclusion(_ context.Context, orderID, driverID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.exclusions = append(t.exclusions, exclusionOp{orderID: orderID, driverID: driverID})
	return nil
}

func (t *txRepo) ClearExclusions(_ context.Context, orderID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.exclusions = append(t.exclusions, exclusionOp{orderID: orderID})
	return nil
}

func (t *txRepo) Excluded(_ context.Context, orderID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for id := range t.base.exclusions[orderID] {
		out[id] = true
	}
	for _, ex := range t.exclusions {
		switch {
		case ex.orderID != orderID:
		case ex.driverID == "":
			clear(out)
		default:
			out[ex.driverID] = true
		}
	}
	return out, nil
}

// Wallets

func (t *txRepo) GetWallet(_ context.Context, driverID string) (*domain.Wallet, error) {
	w, ok := t.wallets[driverID]
	if !ok {
		w = t.base.wallets[driverID]
	}
	if w == nil {
		return nil, nil
	}
	return cloneWallet(w), nil
}

func (t *txRepo) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, _ := t.GetWallet(ctx, w.DriverID)
	var curVersion int64
	if cur != nil {
		curVersion = cur.Version
	}
	if err := checkVersion(cur != nil, curVersion, w.Version); err != nil {
		return fmt.Errorf("save wallet %s: %w", w.DriverID, err)
	}
	w.Version++
	t.wallets[w.DriverID] = cloneWallet(w)
	return nil
}

func (t *txRepo) GetTransactionByKey(_ context.Context, key string) (*domain.Transaction, error) {
	for _, tr := range t.transactions {
		if tr.IdempotencyKey == key {
			c := tr
			return &c, nil
		}
	}
	tr, ok := t.base.keys[key]
	if !ok {
		return nil, nil
	}
	return &tr, nil
}

func (t *txRepo) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, _ := t.GetTransactionByKey(ctx, tr.IdempotencyKey)
	if existing != nil {
		return fmt.Errorf("insert transaction %q: %w", tr.IdempotencyKey, apperr.ErrConflict)
	}
	t.transactions = append(t.transactions, *tr)
	return nil
}

func (t *txRepo) ListTransactions(_ context.Context, driverID string) ([]domain.Transaction, error) {
	base := t.base.transactions[driverID]
	out := make([]domain.Transaction, 0, len(base))
	out = append(out, base...)
	for _, tr := range t.transactions {
		if tr.DriverID == driverID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func checkVersion(exists bool, current, given int64) error {
	switch {
	case !exists && given == 0:
		return nil
	case !exists:
		return apperr.ErrNotFound
	case given != current:
		return apperr.ErrConflict
	}
	return nil
}

func versionOf(v *domain.Vehicle) int64 {
	if v == nil {
		return 0
	}
	return v.Version
}

func unionKeys[V any](base, staged map[string]V) []string {
	keys := make([]string, 0, len(base)+len(staged))
	for k := range base {
		keys = append(keys, k)
	}
	for k := range staged {
		if _, ok := base[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
