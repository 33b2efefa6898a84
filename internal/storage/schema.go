package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
//
// The tables mirror what the membership CRUD service owns; the router reads
// them and writes only balances, entry logs and staff activity.
func InitSchema(db *sql.DB) error {
	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// operators: gym accounts; two tag slots (primary and backup)
		`CREATE TABLE IF NOT EXISTS operators (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'admin',
			billing_model TEXT NOT NULL DEFAULT 'subscription'
				CHECK (billing_model IN ('prepaid', 'subscription')),
			rfid_tag TEXT,
			rfid_tag_backup TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operators_tag ON operators(rfid_tag)`,
		`CREATE INDEX IF NOT EXISTS idx_operators_tag_backup ON operators(rfid_tag_backup)`,

		// vendor_tags: every tag the hardware vendor has issued
		`CREATE TABLE IF NOT EXISTS vendor_tags (
			rfid_tag TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			rfid_tag TEXT,
			profile_image TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (admin_id) REFERENCES operators(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_staff_tag ON staff(admin_id, rfid_tag)`,

		// members: balance is in minor currency units and never negative
		`CREATE TABLE IF NOT EXISTS members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			rfid_tag TEXT,
			profile_image TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			subscription_expires_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (admin_id) REFERENCES operators(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_tag ON members(rfid_tag)`,

		// guests: day-pass bindings
		`CREATE TABLE IF NOT EXISTS guests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			rfid_tag TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (admin_id) REFERENCES operators(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guests_tag ON guests(admin_id, rfid_tag)`,

		// pricing: per-entry fee for prepaid operators
		`CREATE TABLE IF NOT EXISTS pricing (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			price INTEGER NOT NULL CHECK (price >= 0),
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (admin_id) REFERENCES operators(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS entry_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			rfid_tag TEXT NOT NULL,
			billing_model TEXT NOT NULL,
			visitor_type TEXT NOT NULL,
			member_id INTEGER,
			guest_id INTEGER,
			entry_time TIMESTAMP NOT NULL,
			exit_time TIMESTAMP,
			status TEXT NOT NULL,
			amount_deducted INTEGER NOT NULL DEFAULT 0
		)`,
		// At most one open row per tag and billing model
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entry_logs_open
			ON entry_logs(rfid_tag, billing_model) WHERE exit_time IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_entry_logs_tag ON entry_logs(rfid_tag, billing_model)`,

		`CREATE TABLE IF NOT EXISTS staff_activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			staff_id INTEGER NOT NULL,
			admin_id INTEGER NOT NULL,
			time_in TIMESTAMP NOT NULL,
			time_out TIMESTAMP,
			FOREIGN KEY (staff_id) REFERENCES staff(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_staff_activity_open
			ON staff_activity(staff_id) WHERE time_out IS NULL`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
