package casedb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// seedTables are the tables the fixture set writes to; all of them must
// exist before seeding.
var seedTables = []string{"users", "cases", "evidence", "notes", "timeline_events", "audit_logs"}

// Seed inserts development fixture data: a demo user, two open cases with
// evidence, notes and timeline events, and matching audit rows. It returns
// the number of rows inserted.
//
// Seeding requires a migrated schema and refuses a database that already
// holds case data, so it cannot pollute a live store.
func (e *Engine) Seed(ctx context.Context) (int, error) {
	for _, table := range seedTables {
		var n int
		err := e.db.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("table %s missing: apply pending migrations before seeding", table)
		}
	}
	var existing int
	if err := e.db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM cases`); err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, fmt.Errorf("refusing to seed: database already holds %d case(s)", existing)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	userID := uuid.NewString()
	housingID := uuid.NewString()
	employmentID := uuid.NewString()

	type stmt struct {
		query string
		args  []any
	}
	stmts := []stmt{
		{`INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
			[]any{userID, "demo", "demo@justicecompanion.test", now}},

		{`INSERT INTO cases (id, user_id, title, case_type, status, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{housingID, userID, "Disrepair claim against Northgate Lettings", "housing", "active",
				"Persistent damp and mould in a rented flat; the landlord has ignored repair requests since March.", now}},
		{`INSERT INTO cases (id, user_id, title, case_type, status, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{employmentID, userID, "Unfair dismissal from Harwood Logistics", "employment", "active",
				"Dismissed without written warning shortly after raising a payroll complaint.", now}},

		{`INSERT INTO evidence (id, case_id, title, evidence_type, file_path, obtained_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "Signed tenancy agreement", "document", "evidence/tenancy-agreement.pdf", "2024-06-01", now}},
		{`INSERT INTO evidence (id, case_id, title, evidence_type, file_path, obtained_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "Photographs of bedroom damp", "photo", "evidence/bedroom-damp-2026-03.jpg", "2026-03-08", now}},
		{`INSERT INTO evidence (id, case_id, title, evidence_type, content, obtained_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), employmentID, "Email thread with HR about payroll complaint", "email",
				"Subject: Missing overtime payments\nSent: 2026-04-02\nRaised underpayment of March overtime with HR; no substantive reply received.", "2026-04-02", now}},

		{`INSERT INTO notes (id, case_id, content, created_at) VALUES (?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "Council environmental health officer visit booked for 3 September.", now}},
		{`INSERT INTO notes (id, case_id, content, created_at) VALUES (?, ?, ?, ?)`,
			[]any{uuid.NewString(), employmentID, "ACAS early conciliation certificate received; tribunal deadline runs from 14 August.", now}},

		{`INSERT INTO timeline_events (id, case_id, title, event_date, created_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "Tenancy started", "2024-06-01", now}},
		{`INSERT INTO timeline_events (id, case_id, title, event_date, created_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "First repair request sent to landlord", "2026-03-10", now}},
		{`INSERT INTO timeline_events (id, case_id, title, event_date, created_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), housingID, "Section 21 notice received", "2026-07-22", now}},
		{`INSERT INTO timeline_events (id, case_id, title, event_date, created_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), employmentID, "Dismissal letter received", "2026-05-14", now}},

		{`INSERT INTO audit_logs (id, event_type, user_id, case_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), "user.created", userID, nil, `{"source":"seed"}`, now}},
		{`INSERT INTO audit_logs (id, event_type, user_id, case_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), "case.created", userID, housingID, `{"source":"seed"}`, now}},
		{`INSERT INTO audit_logs (id, event_type, user_id, case_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.NewString(), "case.created", userID, employmentID, `{"source":"seed"}`, now}},
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("seeding fixtures: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	loggerFrom(ctx).Info("seeded development fixtures", "rows", len(stmts))
	return len(stmts), nil
}
