package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IsVendorTag reports whether the tag was issued by the hardware vendor.
func (s *SQLiteStorage) IsVendorTag(ctx context.Context, tag string) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vendor_tags WHERE rfid_tag = ?", tag).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check vendor tag: %w", err)
	}
	return count > 0, nil
}

// FindActiveStaffByTag returns the active staff member of operatorID holding tag.
// Returns ErrNotFound if there is none.
func (s *SQLiteStorage) FindActiveStaffByTag(ctx context.Context, operatorID int64, tag string) (*Staff, error) {
	var st Staff
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, rfid_tag, profile_image, status
		FROM staff WHERE admin_id = ? AND rfid_tag = ? AND status = ?
		ORDER BY id ASC LIMIT 1`,
		operatorID, tag, StatusActive).
		Scan(&st.ID, &st.OperatorID, &st.Name, &st.Tag, &st.ProfileImage, &st.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find staff by tag: %w", err)
	}
	return &st, nil
}

// FindOperatorByTag returns the operator whose primary or backup tag slot holds tag.
// Returns ErrNotFound if there is none.
func (s *SQLiteStorage) FindOperatorByTag(ctx context.Context, tag string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, billing_model, rfid_tag, rfid_tag_backup
		FROM operators WHERE rfid_tag = ? OR rfid_tag_backup = ?
		ORDER BY id ASC LIMIT 1`,
		tag, tag)
	op, err := scanOperator(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find operator by tag: %w", err)
	}
	return op, nil
}

// GetOperator retrieves an operator by ID.
// Returns ErrNotFound if the operator doesn't exist.
func (s *SQLiteStorage) GetOperator(ctx context.Context, id int64) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, billing_model, rfid_tag, rfid_tag_backup
		FROM operators WHERE id = ?`,
		id)
	op, err := scanOperator(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return op, nil
}

func scanOperator(row *sql.Row) (*Operator, error) {
	var op Operator
	var model string
	var tag, backup sql.NullString
	if err := row.Scan(&op.ID, &op.Name, &op.Role, &model, &tag, &backup); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	op.BillingModel = BillingModel(model)
	op.Tag = tag.String
	op.BackupTag = backup.String
	return &op, nil
}

// FindMemberByTag returns the member holding tag across all operators.
// Returns ErrNotFound if there is none.
func (s *SQLiteStorage) FindMemberByTag(ctx context.Context, tag string) (*Member, error) {
	var m Member
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, rfid_tag, profile_image, status, balance, subscription_expires_at
		FROM members WHERE rfid_tag = ?
		ORDER BY id ASC LIMIT 1`,
		tag).
		Scan(&m.ID, &m.OperatorID, &m.Name, &m.Tag, &m.ProfileImage, &m.Status, &m.Balance, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find member by tag: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		m.SubscriptionExpiresAt = &t
	}
	return &m, nil
}

// GetMember retrieves a member by ID.
// Returns ErrNotFound if the member doesn't exist.
func (s *SQLiteStorage) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	var tag sql.NullString
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, rfid_tag, profile_image, status, balance, subscription_expires_at
		FROM members WHERE id = ?`,
		id).
		Scan(&m.ID, &m.OperatorID, &m.Name, &tag, &m.ProfileImage, &m.Status, &m.Balance, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Tag = tag.String
	if expires.Valid {
		t := expires.Time
		m.SubscriptionExpiresAt = &t
	}
	return &m, nil
}

// FindGuestByTag returns the most recent day pass of operatorID bound to tag.
// Returns ErrNotFound if there is none.
func (s *SQLiteStorage) FindGuestByTag(ctx context.Context, operatorID int64, tag string) (*Guest, error) {
	var g Guest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, rfid_tag, expires_at
		FROM guests WHERE admin_id = ? AND rfid_tag = ?
		ORDER BY id DESC LIMIT 1`,
		operatorID, tag).
		Scan(&g.ID, &g.OperatorID, &g.Name, &g.Tag, &g.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guest by tag: %w", err)
	}
	return &g, nil
}
