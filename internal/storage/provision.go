package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Provisioning writes normally belong to the membership service. They are kept
// here so a standalone router (and its tests) can be seeded.

// CreateOperator inserts an operator and returns its ID.
func (s *SQLiteStorage) CreateOperator(ctx context.Context, op Operator) (int64, error) {
	if op.Role == "" {
		op.Role = "admin"
	}
	if op.BillingModel == "" {
		op.BillingModel = BillingSubscription
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO operators (name, role, billing_model, rfid_tag, rfid_tag_backup) VALUES (?, ?, ?, ?, ?)",
		op.Name, op.Role, string(op.BillingModel), nullString(op.Tag), nullString(op.BackupTag))
	if err != nil {
		return 0, fmt.Errorf("failed to create operator: %w", err)
	}
	return lastID(result)
}

// AddVendorTag registers a vendor-issued tag.
// Returns ErrDuplicate if the tag is already registered.
func (s *SQLiteStorage) AddVendorTag(ctx context.Context, tag string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO vendor_tags (rfid_tag) VALUES (?)", tag)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add vendor tag: %w", err)
	}
	return nil
}

// CreateStaff inserts a staff member and returns its ID.
func (s *SQLiteStorage) CreateStaff(ctx context.Context, st Staff) (int64, error) {
	if st.Status == "" {
		st.Status = StatusActive
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO staff (admin_id, name, rfid_tag, profile_image, status) VALUES (?, ?, ?, ?, ?)",
		st.OperatorID, st.Name, nullString(st.Tag), st.ProfileImage, st.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to create staff: %w", err)
	}
	return lastID(result)
}

// CreateMember inserts a member and returns its ID.
func (s *SQLiteStorage) CreateMember(ctx context.Context, m Member) (int64, error) {
	if m.Status == "" {
		m.Status = StatusActive
	}
	var expires sql.NullTime
	if m.SubscriptionExpiresAt != nil {
		expires = sql.NullTime{Time: dbTime(*m.SubscriptionExpiresAt), Valid: true}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (admin_id, name, rfid_tag, profile_image, status, balance, subscription_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.OperatorID, m.Name, nullString(m.Tag), m.ProfileImage, m.Status, m.Balance, expires)
	if err != nil {
		return 0, fmt.Errorf("failed to create member: %w", err)
	}
	return lastID(result)
}

// CreateGuest binds a day pass to a tag and returns its ID.
func (s *SQLiteStorage) CreateGuest(ctx context.Context, g Guest) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO guests (admin_id, name, rfid_tag, expires_at) VALUES (?, ?, ?, ?)",
		g.OperatorID, g.Name, g.Tag, dbTime(g.ExpiresAt))
	if err != nil {
		return 0, fmt.Errorf("failed to create guest: %w", err)
	}
	return lastID(result)
}

// SetPrice makes price the only active per-entry price of the operator.
func (s *SQLiteStorage) SetPrice(ctx context.Context, operatorID, price int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE pricing SET active = 0 WHERE admin_id = ?", operatorID); err != nil {
			return fmt.Errorf("failed to deactivate prices: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pricing (admin_id, price, active) VALUES (?, ?, 1)", operatorID, price); err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
		return nil
	})
}

// CountEntryLogs returns the number of log rows (open and closed) for the tag.
func (s *SQLiteStorage) CountEntryLogs(ctx context.Context, tag string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entry_logs WHERE rfid_tag = ?", tag).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entry logs: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func lastID(result sql.Result) (int64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert ID: %w", err)
	}
	return id, nil
}
