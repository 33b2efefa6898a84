// Package scanmode holds the per-operator flags that make the next scan a
// tag registration or a tag replacement instead of an entry or exit.
//
// Flags live in memory only. Every change is published to the operator's
// dashboards so the UI always mirrors the current state.
package scanmode

import (
	"log/slog"
	"sync"

	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/protocol"
)

// Publisher delivers flag changes. *hub.Hub implements it.
type Publisher interface {
	Broadcast(ev hub.Event) int
}

// Flags is the scan mode of one operator. Operator 0 is the super scope.
type Flags struct {
	Registration bool
	Replacement  bool
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	flags  map[int64]Flags
	pub    Publisher
	logger *slog.Logger
}

// New creates an empty registry. If logger is nil, slog.Default() is used.
func New(pub Publisher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		flags:  make(map[int64]Flags),
		pub:    pub,
		logger: logger,
	}
}

// Flags returns the current flags of operatorID.
func (r *Registry) Flags(operatorID int64) Flags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[operatorID]
}

// SetRegistrationMode sets the registration flag and publishes it.
func (r *Registry) SetRegistrationMode(operatorID int64, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flags[operatorID]
	f.Registration = enabled
	r.store(operatorID, f)
	r.publish(protocol.TypeScanModeUpdated, operatorID, enabled)
}

// SetReplacementMode sets the replacement flag and publishes it.
func (r *Registry) SetReplacementMode(operatorID int64, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flags[operatorID]
	f.Replacement = enabled
	r.store(operatorID, f)
	r.publish(protocol.TypeReplacementModeUpdated, operatorID, enabled)
}

// TakeRegistration consumes the registration flag. It reports whether the
// flag was set; if so it is now false and the change has been published.
func (r *Registry) TakeRegistration(operatorID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flags[operatorID]
	if !f.Registration {
		return false
	}
	f.Registration = false
	r.store(operatorID, f)
	r.publish(protocol.TypeScanModeUpdated, operatorID, false)
	return true
}

// TakeReplacement consumes the replacement flag, like TakeRegistration.
func (r *Registry) TakeReplacement(operatorID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flags[operatorID]
	if !f.Replacement {
		return false
	}
	f.Replacement = false
	r.store(operatorID, f)
	r.publish(protocol.TypeReplacementModeUpdated, operatorID, false)
	return true
}

// Clear resets both flags of operatorID, publishing only the ones that were set.
func (r *Registry) Clear(operatorID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[operatorID]
	if !ok {
		return
	}
	delete(r.flags, operatorID)
	if f.Registration {
		r.publish(protocol.TypeScanModeUpdated, operatorID, false)
	}
	if f.Replacement {
		r.publish(protocol.TypeReplacementModeUpdated, operatorID, false)
	}
	r.logger.Debug("scan modes cleared", "admin_id", operatorID)
}

// store must be called with mu held. All-false entries are dropped.
func (r *Registry) store(operatorID int64, f Flags) {
	if f == (Flags{}) {
		delete(r.flags, operatorID)
		return
	}
	r.flags[operatorID] = f
}

// publish must be called with mu held so broadcasts follow state order.
func (r *Registry) publish(msgType string, operatorID int64, enabled bool) {
	r.logger.Info("scan mode updated", "type", msgType, "admin_id", operatorID, "enabled", enabled)
	if r.pub == nil {
		return
	}
	r.pub.Broadcast(hub.Event{
		Type:       msgType,
		OperatorID: operatorID,
		Data:       protocol.ScanModeData{Enabled: enabled, AdminID: protocol.OperatorRef(operatorID)},
	})
}
