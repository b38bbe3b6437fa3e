package worker

import "time"

// Worker is the domain representation of a worker directory entry. It mirrors
// the workers table; vetting status lives here and nowhere else.
type Worker struct {
	ID          string
	UserID      string
	Email       string
	FullName    string
	Status      Status
	Specialties []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReviewEvent captures an immutable record of an admin review decision.
type ReviewEvent struct {
	ID        int64
	WorkerID  string
	Type      string
	ActorID   *string
	Payload   []byte
	CreatedAt time.Time
}

// ListFilter narrows directory listings.
type ListFilter struct {
	Status Status
	Limit  int
}
