package booking

import "time"

// ServiceKind names the service a customer requests.
type ServiceKind string

const (
	ServiceCarWash   ServiceKind = "car-wash"
	ServiceCarRepair ServiceKind = "car-repair"
)

// ValidServiceKind reports whether the kind is one the shop offers.
func ValidServiceKind(k ServiceKind) bool {
	return k == ServiceCarWash || k == ServiceCarRepair
}

// Booking is the domain representation of a service appointment. It mirrors
// the bookings table. AssignedWorker is set at most once by the assignment
// engine and never changes afterwards.
type Booking struct {
	ID              string
	ServiceKind     ServiceKind
	CustomerName    string
	VehicleModel    string
	Date            time.Time
	Time            string
	Status          Status
	AssignedWorker  *string
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams contains the customer appointment request.
type CreateParams struct {
	ServiceKind  ServiceKind
	CustomerName string
	VehicleModel string
	Date         time.Time
	Time         string
}

// ListFilter narrows booking listings. The service fills the ownership fields
// from the acting principal; callers cannot widen their own scope.
type ListFilter struct {
	Status          Status
	AssignedWorker  string
	CreatedByUserID string
	Limit           int
}

// Event captures an immutable record of a booking mutation.
type Event struct {
	ID        int64
	BookingID string
	Type      string
	ActorID   *string
	Payload   []byte
	CreatedAt time.Time
}
