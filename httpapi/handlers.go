package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"garageflow/access"
	"garageflow/booking"
	"garageflow/identity"
	"garageflow/worker"
)

// PrincipalResolver turns a session token into a fresh Principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, sessionToken string) (identity.Principal, error)
}

// IdentityService is the account surface the handlers need.
type IdentityService interface {
	PrincipalResolver
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.User, error)
	RegisterWorker(ctx context.Context, req identity.WorkerSignupRequest) (*identity.User, error)
	Login(ctx context.Context, req identity.LoginRequest) (identity.LoginResult, error)
	ApplyAsWorker(ctx context.Context, userID string, specialties []string) (*identity.User, error)
}

// BookingService is the lifecycle surface the handlers need.
type BookingService interface {
	Create(ctx context.Context, params booking.CreateParams, actor identity.Principal) (booking.Booking, error)
	Get(ctx context.Context, bookingID string, actor identity.Principal) (booking.Booking, []booking.Event, error)
	Advance(ctx context.Context, bookingID string, target booking.Status, actor identity.Principal) (booking.Booking, error)
	List(ctx context.Context, filter booking.ListFilter, actor identity.Principal) ([]booking.Booking, error)
}

// WorkerService is the directory surface the handlers need.
type WorkerService interface {
	Review(ctx context.Context, workerID string, decision worker.Decision, actor identity.Principal) (worker.Worker, error)
	Get(ctx context.Context, workerID string, actor identity.Principal) (worker.Worker, []worker.ReviewEvent, error)
	List(ctx context.Context, filter worker.ListFilter, actor identity.Principal) ([]worker.Worker, error)
}

// AssignmentEngine is the coupling surface the handlers need.
type AssignmentEngine interface {
	Assign(ctx context.Context, bookingID, workerEmail string, actor identity.Principal) (booking.Booking, error)
}

type Handlers struct {
	Identity    IdentityService
	Bookings    BookingService
	Workers     WorkerService
	Assignments AssignmentEngine
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type bookingView struct {
	ID             string  `json:"id"`
	ServiceKind    string  `json:"service_kind"`
	CustomerName   string  `json:"customer_name"`
	VehicleModel   string  `json:"vehicle_model"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Status         string  `json:"status"`
	AssignedWorker *string `json:"assigned_worker,omitempty"`
}

type workerView struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Status      string   `json:"status"`
	Specialties []string `json:"specialties"`
}

type eventView struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	ActorID   *string         `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// idParam validates the {id} route parameter before it reaches storage, so a
// malformed value is a client error rather than a failed uuid cast.
func idParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	if _, err := uuid.Parse(raw); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "id must be a UUID")
		return "", false
	}
	return raw, true
}

func toUserView(u identity.User) userView {
	return userView{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: string(u.Role)}
}

func toBookingView(b booking.Booking) bookingView {
	return bookingView{
		ID:             b.ID,
		ServiceKind:    string(b.ServiceKind),
		CustomerName:   b.CustomerName,
		VehicleModel:   b.VehicleModel,
		Date:           b.Date.Format("2006-01-02"),
		Time:           b.Time,
		Status:         string(b.Status),
		AssignedWorker: b.AssignedWorker,
	}
}

func toBookingEventViews(events []booking.Event) []eventView {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorID,
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return views
}

func toReviewEventViews(events []worker.ReviewEvent) []eventView {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorID,
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return views
}

func toWorkerView(w worker.Worker) workerView {
	specialties := w.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return workerView{
		ID:          w.ID,
		Email:       w.Email,
		FullName:    w.FullName,
		Status:      string(w.Status),
		Specialties: specialties,
	}
}

func (h Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req identity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	user, err := h.Identity.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserView(*user))
}

func (h Handlers) WorkerSignup(w http.ResponseWriter, r *http.Request) {
	var req identity.WorkerSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	user, err := h.Identity.RegisterWorker(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserView(*user))
}

func (h Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req identity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	res, err := h.Identity.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  toUserView(res.User),
	})
}

type createBookingRequest struct {
	ServiceKind  string `json:"service_kind"`
	CustomerName string `json:"customer_name"`
	VehicleModel string `json:"vehicle_model"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

func (h Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "date must be YYYY-MM-DD")
		return
	}

	b, err := h.Bookings.Create(r.Context(), booking.CreateParams{
		ServiceKind:  booking.ServiceKind(req.ServiceKind),
		CustomerName: req.CustomerName,
		VehicleModel: req.VehicleModel,
		Date:         date,
		Time:         req.Time,
	}, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingView(b))
}

func (h Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	filter := booking.ListFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := booking.ParseStatus(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		filter.Status = status
	}

	bookings, err := h.Bookings.List(r.Context(), filter, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, toBookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": views})
}

func (h Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, events, err := h.Bookings.Get(r.Context(), id, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"booking": toBookingView(b),
		"events":  toBookingEventViews(events),
	})
}

type advanceRequest struct {
	Status string `json:"status"`
}

func (h Handlers) AdvanceBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	target, err := booking.ParseStatus(req.Status)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, err := h.Bookings.Advance(r.Context(), id, target, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingView(b))
}

type assignRequest struct {
	WorkerEmail string `json:"worker_email"`
}

func (h Handlers) AssignWorker(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, err := h.Assignments.Assign(r.Context(), id, req.WorkerEmail, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingView(b))
}

func (h Handlers) ListWorkers(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	filter := worker.ListFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := worker.ParseStatus(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		filter.Status = status
	}

	workers, err := h.Workers.List(r.Context(), filter, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]workerView, 0, len(workers))
	for _, entry := range workers {
		views = append(views, toWorkerView(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": views})
}

func (h Handlers) GetWorker(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	entry, events, err := h.Workers.Get(r.Context(), id, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"worker": toWorkerView(entry),
		"events": toReviewEventViews(events),
	})
}

type applyRequest struct {
	Specialties []string `json:"specialties"`
}

// ApplyAsWorker upgrades the calling customer into a pending worker. The gate
// check lives here because the identity service sits below the access layer.
func (h Handlers) ApplyAsWorker(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}
	if err := access.Authorize(principal, access.ActionRegisterWorker).Err(); err != nil {
		writeDomainError(w, err)
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	user, err := h.Identity.ApplyAsWorker(r.Context(), principal.ID, req.Specialties)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserView(*user))
}

type reviewRequest struct {
	Decision string `json:"decision"`
}

func (h Handlers) ReviewWorker(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	decision, err := worker.ParseDecision(req.Decision)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	entry, err := h.Workers.Review(r.Context(), id, decision, principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkerView(entry))
}
