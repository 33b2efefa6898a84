package mockstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gymgate/access-router/internal/storage"
)

// TestMockStorage_DefaultBehavior verifies default return values when no function fields are set.
func TestMockStorage_DefaultBehavior(t *testing.T) {
	t.Parallel()
	mock := &MockStorage{}
	ctx := context.Background()

	ok, err := mock.IsVendorTag(ctx, "A1")
	if err != nil || ok {
		t.Errorf("IsVendorTag default = (%v, %v), want (false, nil)", ok, err)
	}
	if _, err := mock.FindMemberByTag(ctx, "A1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("FindMemberByTag default should return ErrNotFound, got %v", err)
	}
	if _, err := mock.GetMember(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMember default should return ErrNotFound, got %v", err)
	}
	if _, err := mock.OpenEntryLog(ctx, "A1", storage.BillingPrepaid); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("OpenEntryLog default should return ErrNotFound, got %v", err)
	}
	if _, err := mock.ActivePrice(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ActivePrice default should return ErrNotFound, got %v", err)
	}
	if _, err := mock.Admit(ctx, storage.Admission{}); err != nil {
		t.Errorf("Admit default should succeed, got %v", err)
	}
	if err := mock.CloseEntry(ctx, "A1", storage.BillingPrepaid, time.Now()); err != nil {
		t.Errorf("CloseEntry default should succeed, got %v", err)
	}
	if err := mock.Ping(ctx); err != nil {
		t.Errorf("Ping default should succeed, got %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Errorf("Close default should succeed, got %v", err)
	}
}

// TestMockStorage_CustomBehavior verifies that function fields override defaults.
func TestMockStorage_CustomBehavior(t *testing.T) {
	t.Parallel()
	dbErr := errors.New("database locked")
	var admitted storage.Admission

	mock := &MockStorage{
		FindOperatorByTagFunc: func(ctx context.Context, tag string) (*storage.Operator, error) {
			return &storage.Operator{ID: 3, Tag: tag}, nil
		},
		AdmitFunc: func(ctx context.Context, a storage.Admission) (int64, error) {
			admitted = a
			return 700, nil
		},
		PingFunc: func(ctx context.Context) error { return dbErr },
	}
	ctx := context.Background()

	op, err := mock.FindOperatorByTag(ctx, "OP-1")
	if err != nil || op.ID != 3 || op.Tag != "OP-1" {
		t.Errorf("FindOperatorByTag = (%+v, %v)", op, err)
	}

	balance, err := mock.Admit(ctx, storage.Admission{Tag: "M-1", Charge: 300})
	if err != nil || balance != 700 {
		t.Errorf("Admit = (%d, %v), want (700, nil)", balance, err)
	}
	if admitted.Tag != "M-1" || admitted.Charge != 300 {
		t.Errorf("Admit received %+v", admitted)
	}

	if err := mock.Ping(ctx); !errors.Is(err, dbErr) {
		t.Errorf("Ping = %v, want %v", err, dbErr)
	}
}
