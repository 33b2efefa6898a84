package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ActivePrice returns the current per-entry price of a prepaid operator.
// Returns ErrNotFound if no active price is configured.
func (s *SQLiteStorage) ActivePrice(ctx context.Context, operatorID int64) (int64, error) {
	var price int64
	err := s.db.QueryRowContext(ctx,
		"SELECT price FROM pricing WHERE admin_id = ? AND active = 1 ORDER BY id DESC LIMIT 1",
		operatorID).
		Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get active price: %w", err)
	}
	return price, nil
}

// OpenEntryLog returns the open (inside) log row for the tag.
// Returns ErrNotFound if the tag is outside.
func (s *SQLiteStorage) OpenEntryLog(ctx context.Context, tag string, model BillingModel) (*EntryLog, error) {
	var l EntryLog
	var billing string
	var exit sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, rfid_tag, billing_model, visitor_type, entry_time, exit_time, status, amount_deducted
		FROM entry_logs WHERE rfid_tag = ? AND billing_model = ? AND exit_time IS NULL
		ORDER BY id DESC LIMIT 1`,
		tag, string(model)).
		Scan(&l.ID, &l.OperatorID, &l.Tag, &billing, &l.VisitorType, &l.EntryTime, &exit, &l.Status, &l.AmountDeducted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get open entry log: %w", err)
	}
	l.BillingModel = BillingModel(billing)
	if exit.Valid {
		t := exit.Time
		l.ExitTime = &t
	}
	return &l, nil
}

// LastExit returns the exit time of the most recently closed log row for the tag.
// Returns ErrNotFound if the tag never left.
func (s *SQLiteStorage) LastExit(ctx context.Context, tag string, model BillingModel) (time.Time, error) {
	var exit time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT exit_time FROM entry_logs
		WHERE rfid_tag = ? AND billing_model = ? AND exit_time IS NOT NULL
		ORDER BY id DESC LIMIT 1`,
		tag, string(model)).
		Scan(&exit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get last exit: %w", err)
	}
	return exit, nil
}

// Admit opens an entry log row and, when a.Charge > 0, deducts the charge from
// the member balance in the same transaction. The deduction is conditional on
// the balance still covering the charge.
//
// Returns the member balance after the admission (0 for guests),
// ErrInsufficientBalance if the deduction matched no row, or ErrAlreadyInside
// if an open row already exists for the tag.
func (s *SQLiteStorage) Admit(ctx context.Context, a Admission) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if a.Charge > 0 {
			result, err := tx.ExecContext(ctx,
				"UPDATE members SET balance = balance - ? WHERE id = ? AND balance >= ?",
				a.Charge, a.MemberID, a.Charge)
			if err != nil {
				return fmt.Errorf("failed to deduct balance: %w", err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return ErrInsufficientBalance
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO entry_logs
			(admin_id, rfid_tag, billing_model, visitor_type, member_id, guest_id, entry_time, status, amount_deducted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.OperatorID, a.Tag, string(a.BillingModel), a.VisitorType,
			nullID(a.MemberID), nullID(a.GuestID), dbTime(a.At), PresenceInside, a.Charge)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrAlreadyInside
			}
			return fmt.Errorf("failed to open entry log: %w", err)
		}

		if a.MemberID > 0 {
			err := tx.QueryRowContext(ctx,
				"SELECT balance FROM members WHERE id = ?", a.MemberID).
				Scan(&balance)
			if err != nil {
				return fmt.Errorf("failed to read balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CloseEntry closes the open log row for the tag.
// Returns ErrAlreadyOutside if there is no open row.
func (s *SQLiteStorage) CloseEntry(ctx context.Context, tag string, model BillingModel, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE entry_logs SET exit_time = ?, status = ?
		WHERE rfid_tag = ? AND billing_model = ? AND exit_time IS NULL`,
		dbTime(at), PresenceOutside, tag, string(model))
	if err != nil {
		return fmt.Errorf("failed to close entry log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyOutside
	}
	return nil
}

// OpenStaffActivity starts a staff presence session.
// Returns ErrAlreadyInside if one is already open.
func (s *SQLiteStorage) OpenStaffActivity(ctx context.Context, staffID, operatorID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO staff_activity (staff_id, admin_id, time_in) VALUES (?, ?, ?)",
		staffID, operatorID, dbTime(at))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrAlreadyInside
		}
		return fmt.Errorf("failed to open staff activity: %w", err)
	}
	return nil
}

// CloseStaffActivity ends the open staff presence session.
// Returns ErrAlreadyOutside if none is open.
func (s *SQLiteStorage) CloseStaffActivity(ctx context.Context, staffID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE staff_activity SET time_out = ? WHERE staff_id = ? AND time_out IS NULL",
		dbTime(at), staffID)
	if err != nil {
		return fmt.Errorf("failed to close staff activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyOutside
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

// dbTime normalizes to UTC, which also drops the monotonic reading.
func dbTime(t time.Time) time.Time {
	return t.UTC()
}
