package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

var (
	alice = Actor{UserID: "user-alice", Role: model.RoleUser}
	bob   = Actor{UserID: "user-bob", Role: model.RoleUser}
	admin = Actor{UserID: "user-admin", Role: model.RoleAdmin}
)

type fixture struct {
	svc   *ReservationService
	store *memStore
	pay   *fakeGateway
	notes *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	for _, a := range []Actor{alice, bob, admin} {
		email := a.UserID + "@example.com"
		st.addUser(model.UserSummary{ID: a.UserID, DisplayName: a.UserID, Email: &email})
	}
	f := &fixture{store: st, pay: &fakeGateway{}, notes: &recordingNotifier{}}
	f.svc = NewReservationService(st, f.pay, f.notes, Options{Logger: zaptest.NewLogger(t)})
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) event(id string, price int64, capacity int) {
	f.store.addEvent(model.Event{
		ID:          id,
		Title:       "Event " + id,
		Venue:       "Shibuya",
		EventDate:   time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC),
		Price:       price,
		Capacity:    capacity,
		IsPublished: true,
	})
}

// paid runs the checkout and confirmation for actor and returns the
// confirmed reservation id.
func (f *fixture) paid(t *testing.T, actor Actor, eventID, intent string) string {
	t.Helper()
	out, err := f.svc.InitiatePaidCheckout(context.Background(), actor, eventID)
	if err != nil {
		t.Fatalf("InitiatePaidCheckout: %v", err)
	}
	got, err := f.svc.ConfirmPayment(context.Background(), PaymentConfirmation{
		ReservationID: out.Reservation.ID, SessionID: *out.Reservation.CheckoutSessionID, PaymentIntentID: intent,
	})
	if err != nil || got != ConfirmApplied {
		t.Fatalf("ConfirmPayment = %v, %v", got, err)
	}
	return out.Reservation.ID
}

func TestCreateFree_CapacityOne(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 0, 1)
	ctx := context.Background()

	res, err := f.svc.CreateFreeReservation(ctx, alice, "ev1")
	if err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if res.Status != model.StatusConfirmed || res.PaymentStatus != model.PaymentUnpaid || res.Amount != 0 {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if _, err := f.svc.CreateFreeReservation(ctx, bob, "ev1"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("second reservation err = %v, want ErrCapacityExceeded", err)
	}
	if n, _ := f.svc.ActiveCount(ctx, "ev1"); n != 1 {
		t.Fatalf("ActiveCount = %d, want 1", n)
	}
}

func TestCreateFree_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 0, 0)
	ctx := context.Background()

	if _, err := f.svc.CreateFreeReservation(ctx, alice, "ev1"); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if _, err := f.svc.CreateFreeReservation(ctx, alice, "ev1"); !errors.Is(err, ErrDuplicateReservation) {
		t.Fatalf("err = %v, want ErrDuplicateReservation", err)
	}
	if n, _ := f.svc.ActiveCount(ctx, "ev1"); n != 1 {
		t.Fatalf("ActiveCount = %d, want 1", n)
	}
}

func TestCreateFree_AfterCancelReservesAgain(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 0, 1)
	ctx := context.Background()

	first, err := f.svc.CreateFreeReservation(ctx, alice, "ev1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(ctx, alice, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	second, err := f.svc.CreateFreeReservation(ctx, alice, "ev1")
	if err != nil {
		t.Fatalf("reserve after cancel: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new reservation row")
	}
}

func TestCreateFree_Preconditions(t *testing.T) {
	f := newFixture(t)
	f.event("paid", 3000, 0)
	f.store.addEvent(model.Event{ID: "draft", Title: "Draft", IsPublished: false})
	ctx := context.Background()

	cases := []struct {
		name    string
		actor   Actor
		eventID string
		want    error
	}{
		{"anonymous", Actor{}, "paid", ErrUnauthorized},
		{"missing event", alice, "nope", ErrNotFound},
		{"unpublished", alice, "draft", ErrNotPublished},
		{"paid event", alice, "paid", ErrCheckoutRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.CreateFreeReservation(ctx, tc.actor, tc.eventID); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDuplicateStoppedByUniqueKey(t *testing.T) {
	f := newFixture(t)
	f.event("free", 0, 0)
	f.event("paid", 3000, 0)
	ctx := context.Background()

	if _, err := f.svc.CreateFreeReservation(ctx, alice, "free"); err != nil {
		t.Fatal(err)
	}
	first, err := f.svc.InitiatePaidCheckout(ctx, alice, "paid")
	if err != nil {
		t.Fatal(err)
	}
	f.store.racedPrecheck = true

	if _, err := f.svc.CreateFreeReservation(ctx, alice, "free"); !errors.Is(err, ErrDuplicateReservation) {
		t.Fatalf("free: expected ErrDuplicateReservation, got %v", err)
	}
	if _, err := f.svc.InitiatePaidCheckout(ctx, alice, "paid"); !errors.Is(err, ErrDuplicateReservation) {
		t.Fatalf("paid: expected ErrDuplicateReservation, got %v", err)
	}
	for _, ev := range []string{"free", "paid"} {
		if n, _ := f.store.ActiveCount(ctx, ev); n != 1 {
			t.Fatalf("%s: active = %d, want 1", ev, n)
		}
	}
	if len(f.pay.sessions) != 1 || f.pay.sessions[0].ReservationID != first.Reservation.ID {
		t.Fatalf("checkout sessions opened = %d", len(f.pay.sessions))
	}
}

func TestCapacityHoldsUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	const capacity, callers = 5, 40
	f.event("ev1", 0, capacity)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := Actor{UserID: fmt.Sprintf("user-%d", i), Role: model.RoleUser}
			_, err := f.svc.CreateFreeReservation(context.Background(), actor, "ev1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != capacity || full != callers-capacity {
		t.Fatalf("ok=%d full=%d, want %d and %d", ok, full, capacity, callers-capacity)
	}
	if n, _ := f.svc.ActiveCount(context.Background(), "ev1"); n != capacity {
		t.Fatalf("ActiveCount = %d, want %d", n, capacity)
	}
}

func TestUniquenessHoldsUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 0, 0)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateFreeReservation(context.Background(), alice, "ev1")
			if err != nil && !errors.Is(err, ErrDuplicateReservation) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("%d reservations succeeded, want 1", ok)
	}
}

func TestPaidCheckoutThenConfirm(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 3000, 10)
	ctx := context.Background()

	out, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1")
	if err != nil {
		t.Fatalf("InitiatePaidCheckout: %v", err)
	}
	if out.URL == "" {
		t.Fatal("empty checkout URL")
	}
	r, _ := f.store.get(out.Reservation.ID)
	if r.Status != model.StatusPending || r.PaymentStatus != model.PaymentUnpaid || r.Amount != 3000 {
		t.Fatalf("after checkout: %+v", r)
	}
	if r.CheckoutSessionID == nil || *r.CheckoutSessionID != "cs_test_"+r.ID {
		t.Fatalf("session id not stored: %v", r.CheckoutSessionID)
	}
	if len(f.pay.sessions) != 1 || f.pay.sessions[0].Amount != 3000 || !f.pay.sessions[0].ExpiresAt.IsZero() {
		t.Fatalf("checkout request = %+v", f.pay.sessions)
	}

	got, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: r.ID, SessionID: *r.CheckoutSessionID, PaymentIntentID: "pi_1"})
	if err != nil || got != ConfirmApplied {
		t.Fatalf("ConfirmPayment = %v, %v", got, err)
	}
	r, _ = f.store.get(r.ID)
	if r.Status != model.StatusConfirmed || r.PaymentStatus != model.PaymentPaid {
		t.Fatalf("after confirm: %s/%s", r.Status, r.PaymentStatus)
	}
	if r.PaymentIntentID == nil || *r.PaymentIntentID != "pi_1" {
		t.Fatalf("payment intent = %v", r.PaymentIntentID)
	}

	f.svc.Wait()
	sent := f.notes.all()
	if len(sent) != 1 || sent[0].Kind != model.NotifyReservationConfirmed || sent[0].Amount != 3000 {
		t.Fatalf("notifications = %+v", sent)
	}
	if sent[0].To != alice.UserID+"@example.com" || sent[0].EventTitle != "Event ev1" {
		t.Fatalf("notification = %+v", sent[0])
	}
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 3000, 0)
	ctx := context.Background()
	id := f.paid(t, alice, "ev1", "pi_1")
	before, _ := f.store.get(id)

	for i := 0; i < 3; i++ {
		got, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: id, PaymentIntentID: "pi_1"})
		if err != nil || got != ConfirmAlreadyApplied {
			t.Fatalf("redelivery %d = %v, %v", i, got, err)
		}
	}
	after, _ := f.store.get(id)
	if after.Status != before.Status || after.PaymentStatus != before.PaymentStatus || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("redelivery changed state: %+v -> %+v", before, after)
	}
	f.svc.Wait()
	if n := len(f.notes.all()); n != 1 {
		t.Fatalf("%d notifications, want 1", n)
	}
}

func TestConfirmPayment_UnknownReservation(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"", "missing"} {
		got, err := f.svc.ConfirmPayment(context.Background(), PaymentConfirmation{ReservationID: id})
		if err != nil || got != ConfirmUnknownReservation {
			t.Fatalf("ConfirmPayment(%q) = %v, %v", id, got, err)
		}
	}
}

func TestConfirmPayment_CheckedInUnpaid(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 3000, 0)
	ctx := context.Background()

	out, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CheckIn(ctx, admin, out.Reservation.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	got, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: out.Reservation.ID, PaymentIntentID: "pi_late"})
	if err != nil || got != ConfirmApplied {
		t.Fatalf("ConfirmPayment = %v, %v", got, err)
	}
	r, _ := f.store.get(out.Reservation.ID)
	if r.Status != model.StatusCheckedIn || r.PaymentStatus != model.PaymentPaid {
		t.Fatalf("state = %s/%s", r.Status, r.PaymentStatus)
	}
}

func TestPaidCheckout_ProviderFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 3000, 1)
	f.pay.checkoutErr = errBoom
	ctx := context.Background()

	if _, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if n, _ := f.svc.ActiveCount(ctx, "ev1"); n != 0 {
		t.Fatalf("ActiveCount = %d after failed checkout", n)
	}

	f.pay.checkoutErr = nil
	if _, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1"); err != nil {
		t.Fatalf("retry after provider recovered: %v", err)
	}
}

func TestPaidCheckout_PendingHoldsCapacity(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 3000, 1)
	ctx := context.Background()

	if _, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.InitiatePaidCheckout(ctx, bob, "ev1"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if _, err := f.svc.InitiatePaidCheckout(ctx, alice, "ev1"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("full event is reported before duplicate, got %v", err)
	}
}

func TestPaidCheckout_FreeEventRejected(t *testing.T) {
	f := newFixture(t)
	f.event("ev1", 0, 0)
	if _, err := f.svc.InitiatePaidCheckout(context.Background(), alice, "ev1"); !errors.Is(err, ErrNotPayable) {
		t.Fatalf("err = %v, want ErrNotPayable", err)
	}
}

func TestPaidCheckout_SessionExpiry(t *testing.T) {
	f := newFixture(t)
	f.svc.pendingTTL = 10 * time.Minute
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	f.event("ev1", 3000, 0)

	if _, err := f.svc.InitiatePaidCheckout(context.Background(), alice, "ev1"); err != nil {
		t.Fatal(err)
	}
	if got, want := f.pay.sessions[0].ExpiresAt, fixed.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestSessionTTL(t *testing.T) {
	for _, tc := range []struct{ in, want time.Duration }{
		{time.Minute, 30 * time.Minute},
		{2 * time.Hour, 2 * time.Hour},
		{48 * time.Hour, 24 * time.Hour},
	} {
		if got := SessionTTL(tc.in); got != tc.want {
			t.Errorf("SessionTTL(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
