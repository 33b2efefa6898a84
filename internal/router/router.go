// Package router dispatches frames from authenticated connections.
//
// Control frames go through a table keyed by protocol.Kind. Scans go through
// a fixed priority chain: replacement mode, registration mode, then a table
// keyed by reader location.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/identity"
	"github.com/gymgate/access-router/internal/ledger"
	"github.com/gymgate/access-router/internal/metrics"
	"github.com/gymgate/access-router/internal/protocol"
)

// Error replies. None of them close the connection.
const (
	ErrNotAuthenticated = "Not authenticated."
	ErrMissingFields    = "Missing rfid_tag or location"
	ErrInvalidMessage   = "Invalid message"
)

// Broadcaster delivers events to live connections.
type Broadcaster interface {
	Broadcast(ev hub.Event) int
}

// Modes is the scan-mode registry as seen by the router.
type Modes interface {
	SetRegistrationMode(operatorID int64, enabled bool)
	SetReplacementMode(operatorID int64, enabled bool)
	TakeRegistration(operatorID int64) bool
	TakeReplacement(operatorID int64) bool
}

// Resolver identifies tags.
type Resolver interface {
	IsVendorTag(ctx context.Context, tag string) (bool, error)
	Resolve(ctx context.Context, tag string, operatorID int64) (*identity.Identity, error)
	CheckAvailability(ctx context.Context, tag string, operatorID int64) (*identity.Availability, error)
}

// Admitter applies entry and exit rules.
type Admitter interface {
	Process(ctx context.Context, id *identity.Identity, operatorID int64, dir ledger.Direction) *ledger.Outcome
}

type handlerFunc func(ctx context.Context, c *hub.Client, m *protocol.Inbound)

type scanFunc func(ctx context.Context, c *hub.Client, tag string, loc protocol.Location)

// Router is safe for concurrent use; each connection calls Handle from its
// own read loop, so frames of one connection are handled in arrival order.
type Router struct {
	hub      Broadcaster
	modes    Modes
	resolver Resolver
	ledger   Admitter
	logger   *slog.Logger

	handlers  map[protocol.Kind]handlerFunc
	locations map[protocol.Location]scanFunc
}

// New wires a router. If logger is nil, slog.Default() is used.
func New(b Broadcaster, modes Modes, resolver Resolver, admitter Admitter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		hub:      b,
		modes:    modes,
		resolver: resolver,
		ledger:   admitter,
		logger:   logger,
	}
	r.handlers = map[protocol.Kind]handlerFunc{
		protocol.KindToggleScanMode:        r.toggleRegistration,
		protocol.KindToggleReplacementMode: r.toggleReplacement,
		protocol.KindScan:                  r.scan,
	}
	r.locations = map[protocol.Location]scanFunc{
		protocol.LocationSuperAdmin: r.vendorCheck,
		protocol.LocationStaff:      r.staffLookup,
		protocol.LocationEntry:      r.admission(ledger.Entry),
		protocol.LocationExit:       r.admission(ledger.Exit),
	}
	return r
}

// Handle decodes and dispatches one frame from c.
func (r *Router) Handle(ctx context.Context, c *hub.Client, frame []byte) {
	m, err := protocol.Decode(frame)
	if err != nil {
		r.logger.Debug("invalid frame", "client_id", c.ID, "error", err)
		r.reply(c, ErrInvalidMessage)
		return
	}

	h, ok := r.handlers[m.Kind()]
	if !ok {
		r.reply(c, fmt.Sprintf("Unknown message type: %s", m.Kind()))
		return
	}
	h(ctx, c, m)
}

func (r *Router) toggleRegistration(ctx context.Context, c *hub.Client, m *protocol.Inbound) {
	if !scoped(c) {
		r.reply(c, ErrNotAuthenticated)
		return
	}
	r.modes.SetRegistrationMode(c.OperatorID, m.Enabled)
}

func (r *Router) toggleReplacement(ctx context.Context, c *hub.Client, m *protocol.Inbound) {
	if !scoped(c) {
		r.reply(c, ErrNotAuthenticated)
		return
	}
	r.modes.SetReplacementMode(c.OperatorID, m.Enabled)
}

func (r *Router) scan(ctx context.Context, c *hub.Client, m *protocol.Inbound) {
	loc := m.Location
	if loc == "" {
		loc = c.Location
	}
	if m.RFIDTag == "" || loc == "" {
		r.reply(c, ErrMissingFields)
		return
	}

	switch {
	case r.modes.TakeReplacement(c.OperatorID):
		r.replacement(c, m.RFIDTag, loc)
		return
	case r.modes.TakeRegistration(c.OperatorID):
		r.registration(ctx, c, m.RFIDTag, loc)
		return
	}

	h, ok := r.locations[loc]
	if !ok {
		r.reply(c, fmt.Sprintf("Unknown location: %s", loc))
		return
	}
	if loc != protocol.LocationSuperAdmin && c.OperatorID == 0 {
		r.reply(c, ErrNotAuthenticated)
		return
	}
	h(ctx, c, m.RFIDTag, loc)
}

// replacement hands the tag to the dashboard as the new credential.
func (r *Router) replacement(c *hub.Client, tag string, loc protocol.Location) {
	metrics.RecordScan(string(loc), "replacement")
	r.hub.Broadcast(hub.Event{
		Type:       protocol.TypeReplacementScanned,
		OperatorID: c.OperatorID,
		Location:   loc,
		Data:       protocol.ReplacementData{RFIDTag: tag, AdminID: protocol.OperatorRef(c.OperatorID)},
	})
}

func (r *Router) registration(ctx context.Context, c *hub.Client, tag string, loc protocol.Location) {
	metrics.RecordScan(string(loc), "registration")
	r.hub.Broadcast(hub.Event{
		Type:       protocol.TypeStaffScan,
		OperatorID: c.OperatorID,
		Location:   loc,
		Data:       r.availability(ctx, tag, c.OperatorID),
	})
}

func (r *Router) vendorCheck(ctx context.Context, c *hub.Client, tag string, loc protocol.Location) {
	data := protocol.RegistrationCheckData{RFIDTag: tag}
	registered, err := r.resolver.IsVendorTag(ctx, tag)
	switch {
	case err != nil:
		r.logger.Error("vendor check failed", "rfid_tag", tag, "error", err)
		data.Message = err.Error()
	case registered:
		data.Registered = true
		data.Message = "RFID tag is registered with the vendor"
	default:
		data.Message = identity.ReasonNotVendor
	}
	metrics.RecordScan(string(loc), "vendor_check")
	r.hub.Broadcast(hub.Event{
		Type:       protocol.TypeRegistrationCheck,
		OperatorID: c.OperatorID,
		Location:   loc,
		Data:       data,
	})
}

// staffLookup pre-fills the new-member form at the front desk.
func (r *Router) staffLookup(ctx context.Context, c *hub.Client, tag string, loc protocol.Location) {
	metrics.RecordScan(string(loc), "lookup")
	r.hub.Broadcast(hub.Event{
		Type:       protocol.TypeScannedForStaff,
		OperatorID: c.OperatorID,
		Location:   loc,
		Data:       r.availability(ctx, tag, c.OperatorID),
	})
}

func (r *Router) availability(ctx context.Context, tag string, operatorID int64) protocol.AvailabilityData {
	data := protocol.AvailabilityData{RFIDTag: tag}
	a, err := r.resolver.CheckAvailability(ctx, tag, operatorID)
	if err != nil {
		r.logger.Error("availability check failed", "rfid_tag", tag, "admin_id", operatorID, "error", err)
		data.Message = ledger.ReasonInternal
		data.ErrorMessage = err.Error()
		return data
	}

	data.Available = a.Available
	data.Message = a.Reason
	data.Category = string(a.Identity.Category)
	if m := a.Identity.Member; m != nil {
		data.Member = &protocol.MemberRef{
			ID:           m.ID,
			Name:         m.Name,
			ProfileImage: m.ProfileImage,
			Status:       m.Status,
			Balance:      m.Balance,
		}
	}
	return data
}

func (r *Router) admission(dir ledger.Direction) scanFunc {
	return func(ctx context.Context, c *hub.Client, tag string, loc protocol.Location) {
		var out *ledger.Outcome
		id, err := r.resolver.Resolve(ctx, tag, c.OperatorID)
		if err != nil {
			r.logger.Error("identity resolution failed", "rfid_tag", tag, "admin_id", c.OperatorID, "error", err)
			out = resolveFailed(tag, loc, err)
		} else {
			out = r.ledger.Process(ctx, id, c.OperatorID, dir)
		}

		metrics.RecordScan(string(loc), outcomeLabel(out))
		r.logger.Info("scan processed",
			"rfid_tag", tag,
			"admin_id", c.OperatorID,
			"location", loc,
			"visitor_type", out.VisitorType,
			"access_granted", out.AccessGranted,
			"reason", out.Reason,
		)
		r.hub.Broadcast(hub.Event{
			Type:       protocol.TypeMemberUpdate,
			OperatorID: c.OperatorID,
			Location:   loc,
			Data:       out,
		})
	}
}

func (r *Router) reply(c *hub.Client, message string) {
	if err := c.Reply(protocol.NewError(message)); err != nil {
		r.logger.Warn("failed to queue error reply", "client_id", c.ID, "error", err)
	}
}

func scoped(c *hub.Client) bool {
	return c.OperatorID > 0 || c.Super
}

func resolveFailed(tag string, loc protocol.Location, err error) *ledger.Outcome {
	return &ledger.Outcome{
		RFIDTag:      tag,
		VisitorType:  ledger.VisitorUnknown,
		Status:       ledger.StatusError,
		Reason:       ledger.ReasonInternal,
		Location:     string(loc),
		Timestamp:    time.Now().UTC(),
		ErrorMessage: err.Error(),
	}
}

func outcomeLabel(out *ledger.Outcome) string {
	switch {
	case out.Status == ledger.StatusError:
		return "error"
	case out.AccessGranted:
		return "granted"
	}
	return "denied"
}
