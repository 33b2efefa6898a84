// Package storage provides SQLite persistence for the tables the access router
// reads (vendor tags, accounts, pricing) and writes (balances, entry logs,
// staff activity).
package storage

import (
	"context"
	"time"
)

// Storage is the full persistence surface used by the router.
type Storage interface {
	// Identity lookups
	IsVendorTag(ctx context.Context, tag string) (bool, error)
	FindActiveStaffByTag(ctx context.Context, operatorID int64, tag string) (*Staff, error)
	FindOperatorByTag(ctx context.Context, tag string) (*Operator, error)
	FindMemberByTag(ctx context.Context, tag string) (*Member, error)
	GetMember(ctx context.Context, id int64) (*Member, error)
	FindGuestByTag(ctx context.Context, operatorID int64, tag string) (*Guest, error)
	GetOperator(ctx context.Context, id int64) (*Operator, error)

	// Ledger
	ActivePrice(ctx context.Context, operatorID int64) (int64, error)
	OpenEntryLog(ctx context.Context, tag string, model BillingModel) (*EntryLog, error)
	LastExit(ctx context.Context, tag string, model BillingModel) (time.Time, error)
	Admit(ctx context.Context, a Admission) (int64, error)
	CloseEntry(ctx context.Context, tag string, model BillingModel, at time.Time) error
	OpenStaffActivity(ctx context.Context, staffID, operatorID int64, at time.Time) error
	CloseStaffActivity(ctx context.Context, staffID int64, at time.Time) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

var _ Storage = (*SQLiteStorage)(nil)
