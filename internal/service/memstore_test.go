package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

// memStore is an in-memory Store.  One mutex serializes transactions,
// which is the strongest form of the row locks the MySQL store takes,
// and a failed transaction restores the snapshot taken when it began.
type memStore struct {
	mu           sync.Mutex
	events       map[string]model.Event
	reservations map[string]model.Reservation
	users        map[string]model.UserSummary

	// commitErr, when set, fails the next commit after fn succeeded.
	commitErr error
	// racedPrecheck makes HasActive miss existing rows, as when a
	// concurrent insert commits after the check; only the unique key in
	// InsertReservation then stops the duplicate.
	racedPrecheck bool
}

func newMemStore() *memStore {
	return &memStore{
		events:       map[string]model.Event{},
		reservations: map[string]model.Reservation{},
		users:        map[string]model.UserSummary{},
	}
}

func (m *memStore) addEvent(ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

func (m *memStore) addUser(u model.UserSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) get(id string) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	return r, ok
}

func (m *memStore) put(r model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
}

func (m *memStore) failNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := make(map[string]model.Reservation, len(m.reservations))
	for k, v := range m.reservations {
		snap[k] = v
	}
	err := fn(&memTx{m: m})
	if err == nil && m.commitErr != nil {
		err, m.commitErr = m.commitErr, nil
	}
	if err != nil {
		m.reservations = snap
	}
	return err
}

func (m *memStore) ActiveCount(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActive(eventID), nil
}

func (m *memStore) ReservationView(_ context.Context, id string) (*model.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := m.view(r)
	return &v, nil
}

func (m *memStore) ListReservationsByUser(_ context.Context, userID string) ([]model.ReservationView, error) {
	return m.list(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (m *memStore) ListReservations(_ context.Context, eventID string) ([]model.ReservationView, error) {
	return m.list(func(r model.Reservation) bool { return eventID == "" || r.EventID == eventID }), nil
}

func (m *memStore) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, r := range m.reservations {
		if r.Status == model.StatusPending && r.PaymentStatus == model.PaymentUnpaid && r.CreatedAt.Before(cutoff) {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memStore) list(keep func(model.Reservation) bool) []model.ReservationView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ReservationView
	for _, r := range m.reservations {
		if keep(r) {
			out = append(out, m.view(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) view(r model.Reservation) model.ReservationView {
	ev := m.events[r.EventID]
	return model.ReservationView{
		Reservation: r,
		Event: model.EventSummary{
			ID: ev.ID, Title: ev.Title, EventDate: ev.EventDate, Venue: ev.Venue, Price: ev.Price, ImageURL: ev.ImageURL,
		},
		User: m.users[r.UserID],
	}
}

func (m *memStore) countActive(eventID string) int {
	n := 0
	for _, r := range m.reservations {
		if r.EventID == eventID && r.Status.Active() {
			n++
		}
	}
	return n
}

// memTx runs with memStore.mu held.
type memTx struct{ m *memStore }

func (t *memTx) LockEvent(_ context.Context, id string) (*model.Event, error) {
	ev, ok := t.m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (t *memTx) CountActive(_ context.Context, eventID string) (int, error) {
	return t.m.countActive(eventID), nil
}

func (t *memTx) HasActive(_ context.Context, userID, eventID string) (bool, error) {
	if t.m.racedPrecheck {
		return false, nil
	}
	return t.m.hasActive(userID, eventID), nil
}

func (m *memStore) hasActive(userID, eventID string) bool {
	for _, r := range m.reservations {
		if r.UserID == userID && r.EventID == eventID && r.Status.Active() {
			return true
		}
	}
	return false
}

func (t *memTx) InsertReservation(_ context.Context, res *model.Reservation) error {
	if _, ok := t.m.reservations[res.ID]; ok {
		return repository.ErrDuplicate
	}
	if res.Status.Active() && t.m.hasActive(res.UserID, res.EventID) {
		return repository.ErrDuplicate
	}
	t.m.reservations[res.ID] = *res
	return nil
}

func (t *memTx) LockReservation(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateReservation(_ context.Context, res *model.Reservation) error {
	if _, ok := t.m.reservations[res.ID]; !ok {
		return repository.ErrNotFound
	}
	t.m.reservations[res.ID] = *res
	return nil
}

// fakeGateway records provider calls.
type fakeGateway struct {
	mu          sync.Mutex
	sessions    []CheckoutRequest
	refunds     []string
	expired     []string
	checkoutErr error
	refundErr   error
	expireErr   error
	// paidSessions are sessions the customer completed; they cannot be
	// expired.
	paidSessions map[string]bool
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	g.sessions = append(g.sessions, req)
	id := "cs_test_" + req.ReservationID
	return &CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (g *fakeGateway) ExpireCheckoutSession(_ context.Context, sessionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expireErr != nil {
		return false, g.expireErr
	}
	if g.paidSessions[sessionID] {
		return true, nil
	}
	g.expired = append(g.expired, sessionID)
	return false, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, paymentIntentID)
	return nil
}

func (g *fakeGateway) expiredSessions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.expired...)
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) all() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.sent...)
}

var errBoom = errors.New("boom")
