package identity

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

// WorkerStatus mirrors the worker directory vetting state. It is duplicated
// here as a plain string type so the resolver does not depend on the worker
// package.
type WorkerStatus string

const (
	WorkerPending  WorkerStatus = "pending"
	WorkerApproved WorkerStatus = "approved"
	WorkerRejected WorkerStatus = "rejected"
)

// Principal is the resolved, authenticated actor behind a request. It is
// derived fresh from the session token plus a profile lookup on every
// privileged action and must never be cached across requests.
type Principal struct {
	ID           string
	Email        string
	Role         Role
	WorkerStatus WorkerStatus
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsApprovedWorker reports whether the principal is a worker whose directory
// status is approved.
func (p Principal) IsApprovedWorker() bool {
	return p.Role == RoleWorker && p.WorkerStatus == WorkerApproved
}

// User is the domain representation of a stored account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains customer registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// WorkerSignupRequest contains worker self-registration data. The resulting
// worker profile always starts in the pending state.
type WorkerSignupRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FullName    string   `json:"full_name"`
	Specialties []string `json:"specialties"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
