// Package mockstore provides a configurable mock implementation of storage interfaces for testing.
//
// The MockStorage type uses function fields for each method, allowing tests to customize behavior
// as needed while providing sensible defaults for methods that aren't customized.
package mockstore

import (
	"context"
	"time"

	"github.com/gymgate/access-router/internal/storage"
)

// MockStorage is a configurable mock implementation of storage.Storage.
// If a function field is nil, lookups return storage.ErrNotFound and writes succeed.
type MockStorage struct {
	// Identity lookups
	IsVendorTagFunc          func(ctx context.Context, tag string) (bool, error)
	FindActiveStaffByTagFunc func(ctx context.Context, operatorID int64, tag string) (*storage.Staff, error)
	FindOperatorByTagFunc    func(ctx context.Context, tag string) (*storage.Operator, error)
	FindMemberByTagFunc      func(ctx context.Context, tag string) (*storage.Member, error)
	GetMemberFunc            func(ctx context.Context, id int64) (*storage.Member, error)
	FindGuestByTagFunc       func(ctx context.Context, operatorID int64, tag string) (*storage.Guest, error)
	GetOperatorFunc          func(ctx context.Context, id int64) (*storage.Operator, error)

	// Ledger
	ActivePriceFunc        func(ctx context.Context, operatorID int64) (int64, error)
	OpenEntryLogFunc       func(ctx context.Context, tag string, model storage.BillingModel) (*storage.EntryLog, error)
	LastExitFunc           func(ctx context.Context, tag string, model storage.BillingModel) (time.Time, error)
	AdmitFunc              func(ctx context.Context, a storage.Admission) (int64, error)
	CloseEntryFunc         func(ctx context.Context, tag string, model storage.BillingModel, at time.Time) error
	OpenStaffActivityFunc  func(ctx context.Context, staffID, operatorID int64, at time.Time) error
	CloseStaffActivityFunc func(ctx context.Context, staffID int64, at time.Time) error

	// Lifecycle
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ storage.Storage = (*MockStorage)(nil)

// IsVendorTag reports whether the tag is vendor-registered. Defaults to false.
func (m *MockStorage) IsVendorTag(ctx context.Context, tag string) (bool, error) {
	if m.IsVendorTagFunc != nil {
		return m.IsVendorTagFunc(ctx, tag)
	}
	return false, nil
}

// FindActiveStaffByTag looks up an active staff member.
func (m *MockStorage) FindActiveStaffByTag(ctx context.Context, operatorID int64, tag string) (*storage.Staff, error) {
	if m.FindActiveStaffByTagFunc != nil {
		return m.FindActiveStaffByTagFunc(ctx, operatorID, tag)
	}
	return nil, storage.ErrNotFound
}

// FindOperatorByTag looks up an operator by either tag slot.
func (m *MockStorage) FindOperatorByTag(ctx context.Context, tag string) (*storage.Operator, error) {
	if m.FindOperatorByTagFunc != nil {
		return m.FindOperatorByTagFunc(ctx, tag)
	}
	return nil, storage.ErrNotFound
}

// FindMemberByTag looks up a member.
func (m *MockStorage) FindMemberByTag(ctx context.Context, tag string) (*storage.Member, error) {
	if m.FindMemberByTagFunc != nil {
		return m.FindMemberByTagFunc(ctx, tag)
	}
	return nil, storage.ErrNotFound
}

// FindGuestByTag looks up a day pass.
func (m *MockStorage) FindGuestByTag(ctx context.Context, operatorID int64, tag string) (*storage.Guest, error) {
	if m.FindGuestByTagFunc != nil {
		return m.FindGuestByTagFunc(ctx, operatorID, tag)
	}
	return nil, storage.ErrNotFound
}

// GetMember retrieves a member by ID. Defaults to ErrNotFound.
func (m *MockStorage) GetMember(ctx context.Context, id int64) (*storage.Member, error) {
	if m.GetMemberFunc != nil {
		return m.GetMemberFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// GetOperator retrieves an operator by ID.
func (m *MockStorage) GetOperator(ctx context.Context, id int64) (*storage.Operator, error) {
	if m.GetOperatorFunc != nil {
		return m.GetOperatorFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// ActivePrice returns the per-entry price.
func (m *MockStorage) ActivePrice(ctx context.Context, operatorID int64) (int64, error) {
	if m.ActivePriceFunc != nil {
		return m.ActivePriceFunc(ctx, operatorID)
	}
	return 0, storage.ErrNotFound
}

// OpenEntryLog returns the open log row. Defaults to ErrNotFound (outside).
func (m *MockStorage) OpenEntryLog(ctx context.Context, tag string, model storage.BillingModel) (*storage.EntryLog, error) {
	if m.OpenEntryLogFunc != nil {
		return m.OpenEntryLogFunc(ctx, tag, model)
	}
	return nil, storage.ErrNotFound
}

// LastExit returns the last exit time. Defaults to ErrNotFound.
func (m *MockStorage) LastExit(ctx context.Context, tag string, model storage.BillingModel) (time.Time, error) {
	if m.LastExitFunc != nil {
		return m.LastExitFunc(ctx, tag, model)
	}
	return time.Time{}, storage.ErrNotFound
}

// Admit opens an entry. Defaults to success with a zero balance.
func (m *MockStorage) Admit(ctx context.Context, a storage.Admission) (int64, error) {
	if m.AdmitFunc != nil {
		return m.AdmitFunc(ctx, a)
	}
	return 0, nil
}

// CloseEntry closes an entry.
func (m *MockStorage) CloseEntry(ctx context.Context, tag string, model storage.BillingModel, at time.Time) error {
	if m.CloseEntryFunc != nil {
		return m.CloseEntryFunc(ctx, tag, model, at)
	}
	return nil
}

// OpenStaffActivity starts a staff session.
func (m *MockStorage) OpenStaffActivity(ctx context.Context, staffID, operatorID int64, at time.Time) error {
	if m.OpenStaffActivityFunc != nil {
		return m.OpenStaffActivityFunc(ctx, staffID, operatorID, at)
	}
	return nil
}

// CloseStaffActivity ends a staff session.
func (m *MockStorage) CloseStaffActivity(ctx context.Context, staffID int64, at time.Time) error {
	if m.CloseStaffActivityFunc != nil {
		return m.CloseStaffActivityFunc(ctx, staffID, at)
	}
	return nil
}

// Ping checks database connectivity.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close closes the storage.
func (m *MockStorage) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
