package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/line-event-reservation/internal/line"
	"github.com/iliyamo/line-event-reservation/internal/middleware"
	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

// call runs h against a request and returns the recorder.  userID and role
// are placed on the context the way JWTAuth does; an empty userID leaves
// the request anonymous.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, userID string, role model.Role, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if userID != "" {
		c.Set(middleware.CtxUserID, userID)
		c.Set(middleware.CtxRole, string(role))
	}
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, status, rec.Body.String())
	}
	m := decode(t, rec)
	if code != "" && m["code"] != code {
		t.Fatalf("code = %v, want %s", m["code"], code)
	}
	return m
}

// fakeReservations records the actor it saw and returns canned results.
type fakeReservations struct {
	mu        sync.Mutex
	lastActor service.Actor
	lastEvent string
	err       error
	refunded  bool
}

func (f *fakeReservations) seen(a service.Actor, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastActor, f.lastEvent = a, id
	if f.err != nil {
		return f.err
	}
	if !a.Authenticated() {
		return service.ErrUnauthorized
	}
	return nil
}

func (f *fakeReservations) CreateFreeReservation(_ context.Context, a service.Actor, eventID string) (*model.Reservation, error) {
	if err := f.seen(a, eventID); err != nil {
		return nil, err
	}
	return &model.Reservation{ID: "res-1", UserID: a.UserID, EventID: eventID, Status: model.StatusConfirmed, PaymentStatus: model.PaymentUnpaid}, nil
}

func (f *fakeReservations) InitiatePaidCheckout(_ context.Context, a service.Actor, eventID string) (*service.CheckoutResult, error) {
	if err := f.seen(a, eventID); err != nil {
		return nil, err
	}
	return &service.CheckoutResult{
		Reservation: &model.Reservation{ID: "res-2", EventID: eventID, Status: model.StatusPending},
		URL:         "https://checkout.stripe.com/c/pay/cs_test_res-2",
	}, nil
}

func (f *fakeReservations) Cancel(_ context.Context, a service.Actor, id string) (*service.CancelResult, error) {
	if err := f.seen(a, id); err != nil {
		return nil, err
	}
	return &service.CancelResult{Reservation: &model.Reservation{ID: id, Status: model.StatusCancelled}, Refunded: f.refunded}, nil
}

func (f *fakeReservations) CheckIn(_ context.Context, a service.Actor, id string) (*model.Reservation, error) {
	if err := f.seen(a, id); err != nil {
		return nil, err
	}
	return &model.Reservation{ID: id, Status: model.StatusCheckedIn}, nil
}

func (f *fakeReservations) ListMine(_ context.Context, a service.Actor) ([]model.ReservationView, error) {
	if err := f.seen(a, ""); err != nil {
		return nil, err
	}
	return []model.ReservationView{{Reservation: model.Reservation{ID: "res-1", UserID: a.UserID}}}, nil
}

func (f *fakeReservations) ListAll(_ context.Context, a service.Actor, eventID string) ([]model.ReservationView, error) {
	if err := f.seen(a, eventID); err != nil {
		return nil, err
	}
	return []model.ReservationView{}, nil
}

func (f *fakeReservations) Get(_ context.Context, a service.Actor, id string) (*model.ReservationView, error) {
	if err := f.seen(a, id); err != nil {
		return nil, err
	}
	return &model.ReservationView{Reservation: model.Reservation{ID: id, UserID: a.UserID}}, nil
}

// fakeEvents is an in-memory catalog.
type fakeEvents struct {
	events    map[string]*model.Event
	deleteErr error
	count     int
}

func newFakeEvents(evs ...model.Event) *fakeEvents {
	f := &fakeEvents{events: map[string]*model.Event{}}
	for i := range evs {
		ev := evs[i]
		f.events[ev.ID] = &ev
	}
	return f
}

func (f *fakeEvents) List(_ context.Context, flt repository.EventFilter) ([]model.Event, error) {
	out := []model.Event{}
	for _, ev := range f.events {
		if flt.PublishedOnly && !ev.IsPublished {
			continue
		}
		if !flt.UpcomingFrom.IsZero() && ev.EventDate.Before(flt.UpcomingFrom) {
			continue
		}
		out = append(out, *ev)
	}
	return out, nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEvents) Create(_ context.Context, ev *model.Event) error {
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeEvents) Update(_ context.Context, ev *model.Event) error {
	if _, ok := f.events[ev.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeEvents) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeEvents) ActiveCount(context.Context, string) (int, error) { return f.count, nil }

type fakeDashboard struct{ d repository.Dashboard }

func (f fakeDashboard) Dashboard(context.Context) (repository.Dashboard, error) { return f.d, nil }

type fakeUploader struct {
	gotType string
	gotSize int64
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, body io.Reader, size int64, contentType string) (string, error) {
	f.gotType, f.gotSize = contentType, size
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.example.com/events/x.png", nil
}

type fakeLINE struct {
	profile *line.Profile
	err     error
}

func (f fakeLINE) Verify(context.Context, string) (*line.Profile, error) { return f.profile, f.err }

type fakeProfiles struct {
	users   map[string]*model.User
	promote map[string]bool
}

func (f *fakeProfiles) UpsertByLineID(_ context.Context, p repository.LineProfile, promote bool) (*model.User, error) {
	if f.users == nil {
		f.users = map[string]*model.User{}
		f.promote = map[string]bool{}
	}
	f.promote[p.LineUserID] = promote
	role := model.RoleUser
	if promote {
		role = model.RoleAdmin
	}
	lid := p.LineUserID
	u := &model.User{ID: "id-" + p.LineUserID, LineUserID: &lid, DisplayName: p.DisplayName, Role: role}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

