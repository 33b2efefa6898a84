// Package ledger decides and records entry and exit admissions.
//
// Presence is tracked per (tag, billing model) as outside or inside, derived
// from the open entry log row. Transitions strictly alternate; a repeated
// ENTRY or EXIT is denied without touching the log. Staff and operator tags
// are always admitted.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gymgate/access-router/internal/identity"
	"github.com/gymgate/access-router/internal/storage"
)

// DefaultGracePeriod is how long after an exit a prepaid re-entry is free.
const DefaultGracePeriod = 60 * time.Second

// Direction is the reader position a scan came from.
type Direction string

const (
	Entry Direction = "ENTRY"
	Exit  Direction = "EXIT"
)

// Visitor types reported to clients.
const (
	VisitorStaff    = "staff"
	VisitorOperator = "admin"
	VisitorMember   = "member"
	VisitorGuest    = "guest"
	VisitorUnknown  = "unknown"
)

// Outcome statuses. Granted and denied member/guest outcomes report the
// presence state after the scan.
const (
	StatusInside  = storage.PresenceInside
	StatusOutside = storage.PresenceOutside
	StatusDenied  = "denied"
	StatusError   = "error"
)

// Denial and grant reasons.
const (
	ReasonGranted         = "Access granted"
	ReasonExitRecorded    = "Exit recorded"
	ReasonGrace           = "Grace period — no charge"
	ReasonAlreadyInside   = "Already inside"
	ReasonAlreadyOutside  = "Already outside"
	ReasonInsufficient    = "Insufficient balance"
	ReasonInactive        = "Member account is inactive"
	ReasonOtherGym        = "Tag belongs to another gym"
	ReasonSubscriptionEnd = "Subscription expired"
	ReasonPassExpired     = "Day pass expired"
	ReasonUnknownTag      = "Unknown RFID tag"
	ReasonInternal        = "Unable to process scan"
)

// Store is the subset of storage the ledger reads and writes.
type Store interface {
	GetMember(ctx context.Context, id int64) (*storage.Member, error)
	FindGuestByTag(ctx context.Context, operatorID int64, tag string) (*storage.Guest, error)
	GetOperator(ctx context.Context, id int64) (*storage.Operator, error)
	ActivePrice(ctx context.Context, operatorID int64) (int64, error)
	OpenEntryLog(ctx context.Context, tag string, model storage.BillingModel) (*storage.EntryLog, error)
	LastExit(ctx context.Context, tag string, model storage.BillingModel) (time.Time, error)
	Admit(ctx context.Context, a storage.Admission) (int64, error)
	CloseEntry(ctx context.Context, tag string, model storage.BillingModel, at time.Time) error
	OpenStaffActivity(ctx context.Context, staffID, operatorID int64, at time.Time) error
	CloseStaffActivity(ctx context.Context, staffID int64, at time.Time) error
}

// Outcome is the member-update payload produced for every resolved scan.
// Money fields are minor currency units and only set when they apply.
type Outcome struct {
	RFIDTag        string    `json:"rfid_tag"`
	Name           string    `json:"name"`
	ProfileImage   string    `json:"profile_image"`
	VisitorType    string    `json:"visitor_type"`
	Status         string    `json:"status"`
	AccessGranted  bool      `json:"access_granted"`
	Reason         string    `json:"reason"`
	Balance        *int64    `json:"balance,omitempty"`
	AmountDeducted *int64    `json:"amount_deducted,omitempty"`
	Price          *int64    `json:"price,omitempty"`
	Location       string    `json:"location"`
	Timestamp      time.Time `json:"timestamp"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithGracePeriod sets the free re-entry window. Zero disables it.
func WithGracePeriod(d time.Duration) Option {
	return func(l *Ledger) { l.grace = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Ledger applies admission rules. Scans of the same tag are serialized.
type Ledger struct {
	store  Store
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger
	tags   *tagMutex
}

// New creates a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		grace:  DefaultGracePeriod,
		now:    time.Now,
		logger: slog.Default(),
		tags:   newTagMutex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Process decides the scan of id at a reader of operatorID and records the
// resulting transition. It never returns nil; store failures yield an
// Outcome with StatusError.
func (l *Ledger) Process(ctx context.Context, id *identity.Identity, operatorID int64, dir Direction) *Outcome {
	unlock := l.tags.Lock(id.Tag)
	defer unlock()

	out := &Outcome{
		RFIDTag:      id.Tag,
		Name:         id.Name(),
		ProfileImage: id.ProfileImage(),
		Location:     string(dir),
		Timestamp:    l.now().UTC(),
	}

	var err error
	switch id.Category {
	case identity.CategoryStaff:
		err = l.staff(ctx, id.Staff, dir, out)
	case identity.CategoryOperator:
		out.VisitorType = VisitorOperator
		grant(out, directionStatus(dir), ReasonGranted)
	case identity.CategoryMember:
		err = l.member(ctx, id.Member, operatorID, dir, out)
	case identity.CategoryUnclaimed:
		err = l.guest(ctx, id.Tag, operatorID, dir, out)
	default:
		out.VisitorType = VisitorUnknown
		deny(out, StatusDenied, identity.ReasonNotVendor)
	}

	if err != nil {
		l.logger.Error("admission failed",
			"rfid_tag", id.Tag,
			"admin_id", operatorID,
			"location", dir,
			"error", err)
		out.Status = StatusError
		out.AccessGranted = false
		out.Reason = ReasonInternal
		out.ErrorMessage = err.Error()
	}
	return out
}

// staff is always granted; the activity log is bookkeeping only, so a
// failure to write it is reported but does not close the door.
func (l *Ledger) staff(ctx context.Context, st *storage.Staff, dir Direction, out *Outcome) error {
	out.VisitorType = VisitorStaff
	grant(out, directionStatus(dir), ReasonGranted)

	at := l.now()
	var err error
	if dir == Entry {
		err = l.store.OpenStaffActivity(ctx, st.ID, st.OperatorID, at)
		if errors.Is(err, storage.ErrAlreadyInside) {
			err = nil
		}
	} else {
		err = l.store.CloseStaffActivity(ctx, st.ID, at)
		if errors.Is(err, storage.ErrAlreadyOutside) {
			err = nil
		}
	}
	if err != nil {
		l.logger.Warn("staff activity not recorded", "staff_id", st.ID, "error", err)
		out.ErrorMessage = err.Error()
	}
	return nil
}

// member reloads the record under the tag lock; the resolved copy may predate
// a concurrent charge or status change.
func (l *Ledger) member(ctx context.Context, resolved *storage.Member, operatorID int64, dir Direction, out *Outcome) error {
	out.VisitorType = VisitorMember

	m, err := l.store.GetMember(ctx, resolved.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			deny(out, StatusDenied, ReasonUnknownTag)
			return nil
		}
		return fmt.Errorf("reload member: %w", err)
	}
	if m.Tag != resolved.Tag {
		deny(out, StatusDenied, ReasonUnknownTag)
		return nil
	}
	out.Name = m.Name
	out.ProfileImage = m.ProfileImage

	if !m.Active() {
		deny(out, StatusDenied, ReasonInactive)
		return nil
	}
	if m.OperatorID != operatorID {
		deny(out, StatusDenied, ReasonOtherGym)
		return nil
	}

	op, err := l.store.GetOperator(ctx, m.OperatorID)
	if err != nil {
		return fmt.Errorf("load operator: %w", err)
	}

	inside, err := l.inside(ctx, m.Tag, op.BillingModel)
	if err != nil {
		return err
	}

	if dir == Exit {
		return l.exit(ctx, m.Tag, op.BillingModel, inside, out)
	}
	if inside {
		deny(out, StatusInside, ReasonAlreadyInside)
		return nil
	}

	now := l.now()
	admission := storage.Admission{
		OperatorID:   m.OperatorID,
		Tag:          m.Tag,
		BillingModel: op.BillingModel,
		VisitorType:  VisitorMember,
		MemberID:     m.ID,
		At:           now,
	}

	if op.BillingModel == storage.BillingSubscription {
		if m.SubscriptionExpiresAt != nil && !now.Before(*m.SubscriptionExpiresAt) {
			deny(out, StatusOutside, ReasonSubscriptionEnd)
			return nil
		}
		if _, err := l.store.Admit(ctx, admission); err != nil {
			return l.admitFailed(err, out)
		}
		grant(out, StatusInside, ReasonGranted)
		return nil
	}

	price, err := l.store.ActivePrice(ctx, m.OperatorID)
	if err != nil {
		return fmt.Errorf("load active price: %w", err)
	}
	out.Price = &price

	reason := ReasonGranted
	if l.withinGrace(ctx, m.Tag, op.BillingModel, now) {
		reason = ReasonGrace
	} else {
		if m.Balance < price {
			out.Balance = &m.Balance
			deny(out, StatusOutside, ReasonInsufficient)
			return nil
		}
		admission.Charge = price
	}

	balance, err := l.store.Admit(ctx, admission)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			out.Balance = &m.Balance
		}
		return l.admitFailed(err, out)
	}
	charged := admission.Charge
	out.Balance = &balance
	out.AmountDeducted = &charged
	grant(out, StatusInside, reason)
	return nil
}

// withinGrace reports whether the last exit happened less than the grace
// period before now. An exit exactly one grace period ago is charged.
func (l *Ledger) withinGrace(ctx context.Context, tag string, model storage.BillingModel, now time.Time) bool {
	if l.grace <= 0 {
		return false
	}
	last, err := l.store.LastExit(ctx, tag, model)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("last exit lookup failed, charging", "rfid_tag", tag, "error", err)
		}
		return false
	}
	return now.Sub(last) < l.grace
}

func (l *Ledger) guest(ctx context.Context, tag string, operatorID int64, dir Direction, out *Outcome) error {
	g, err := l.store.FindGuestByTag(ctx, operatorID, tag)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			out.VisitorType = VisitorUnknown
			deny(out, StatusDenied, ReasonUnknownTag)
			return nil
		}
		return fmt.Errorf("load day pass: %w", err)
	}
	out.VisitorType = VisitorGuest
	out.Name = g.Name

	op, err := l.store.GetOperator(ctx, g.OperatorID)
	if err != nil {
		return fmt.Errorf("load operator: %w", err)
	}

	inside, err := l.inside(ctx, tag, op.BillingModel)
	if err != nil {
		return err
	}
	if dir == Exit {
		return l.exit(ctx, tag, op.BillingModel, inside, out)
	}

	now := l.now()
	if g.Expired(now) {
		deny(out, StatusDenied, ReasonPassExpired)
		return nil
	}
	if inside {
		deny(out, StatusInside, ReasonAlreadyInside)
		return nil
	}

	_, err = l.store.Admit(ctx, storage.Admission{
		OperatorID:   g.OperatorID,
		Tag:          tag,
		BillingModel: op.BillingModel,
		VisitorType:  VisitorGuest,
		GuestID:      g.ID,
		At:           now,
	})
	if err != nil {
		return l.admitFailed(err, out)
	}
	grant(out, StatusInside, ReasonGranted)
	return nil
}

func (l *Ledger) exit(ctx context.Context, tag string, model storage.BillingModel, inside bool, out *Outcome) error {
	if !inside {
		deny(out, StatusOutside, ReasonAlreadyOutside)
		return nil
	}
	if err := l.store.CloseEntry(ctx, tag, model, l.now()); err != nil {
		if errors.Is(err, storage.ErrAlreadyOutside) {
			deny(out, StatusOutside, ReasonAlreadyOutside)
			return nil
		}
		return fmt.Errorf("close entry: %w", err)
	}
	grant(out, StatusOutside, ReasonExitRecorded)
	return nil
}

func (l *Ledger) inside(ctx context.Context, tag string, model storage.BillingModel) (bool, error) {
	_, err := l.store.OpenEntryLog(ctx, tag, model)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("load presence: %w", err)
}

// admitFailed turns store-level conflicts into denials. Another process may
// have admitted the tag or drained the balance since the checks above.
func (l *Ledger) admitFailed(err error, out *Outcome) error {
	switch {
	case errors.Is(err, storage.ErrAlreadyInside):
		deny(out, StatusInside, ReasonAlreadyInside)
		return nil
	case errors.Is(err, storage.ErrInsufficientBalance):
		deny(out, StatusOutside, ReasonInsufficient)
		return nil
	}
	return fmt.Errorf("admit: %w", err)
}

func directionStatus(dir Direction) string {
	if dir == Exit {
		return StatusOutside
	}
	return StatusInside
}

func grant(out *Outcome, status, reason string) {
	out.AccessGranted = true
	out.Status = status
	out.Reason = reason
}

func deny(out *Outcome, status, reason string) {
	out.AccessGranted = false
	out.Status = status
	out.Reason = reason
}
