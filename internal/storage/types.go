package storage

import "time"

// BillingModel selects how an operator charges members.
type BillingModel string

const (
	// BillingPrepaid decrements the member balance on every admitted entry.
	BillingPrepaid BillingModel = "prepaid"
	// BillingSubscription admits members without a per-entry charge.
	BillingSubscription BillingModel = "subscription"
)

// Account status values shared by staff and members.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Operator is a gym account. Operators carry a primary and a backup tag.
type Operator struct {
	ID           int64
	Name         string
	Role         string
	BillingModel BillingModel
	Tag          string
	BackupTag    string
}

// Staff is an employee of one operator.
type Staff struct {
	ID           int64
	OperatorID   int64
	Name         string
	Tag          string
	ProfileImage string
	Status       string
}

// Member is a paying customer of one operator.
type Member struct {
	ID                    int64
	OperatorID            int64
	Name                  string
	Tag                   string
	ProfileImage          string
	Status                string
	Balance               int64 // minor currency units
	SubscriptionExpiresAt *time.Time
}

// Active reports whether the member account may be admitted at all.
func (m *Member) Active() bool {
	return m.Status == StatusActive
}

// Guest is a day-pass binding of a tag to an operator.
type Guest struct {
	ID         int64
	OperatorID int64
	Name       string
	Tag        string
	ExpiresAt  time.Time
}

// Expired reports whether the pass is no longer valid at now.
func (g *Guest) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// EntryLog is one inside/outside visit.
type EntryLog struct {
	ID             int64
	OperatorID     int64
	Tag            string
	BillingModel   BillingModel
	VisitorType    string
	EntryTime      time.Time
	ExitTime       *time.Time
	Status         string
	AmountDeducted int64
}

// Entry log statuses.
const (
	PresenceInside  = "inside"
	PresenceOutside = "outside"
)

// Admission describes an entry log row to open, with an optional charge.
type Admission struct {
	OperatorID   int64
	Tag          string
	BillingModel BillingModel
	VisitorType  string
	MemberID     int64 // 0 for guests
	GuestID      int64 // 0 for members
	Charge       int64 // deducted from MemberID's balance when > 0
	At           time.Time
}
