// Package sqlite serves the source tables and directory from a local SQLite
// file. It backs single-node deployments and the report command.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and bootstraps the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}

	if err := db.configure(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// createSchema mirrors the Postgres migrations. Dates are ISO-8601 text and
// identifiers are canonical UUID strings.
func (db *DB) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS team_leads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team_lead_id TEXT NOT NULL REFERENCES team_leads(id) ON DELETE CASCADE,
		group_name TEXT,
		start_date TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_agents_team_lead ON agents(team_lead_id);

	CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		call_date TEXT NOT NULL,
		call_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		date TEXT NOT NULL,
		amount REAL
	);

	CREATE TABLE IF NOT EXISTS live_chat (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		chat_date TEXT NOT NULL,
		chats INTEGER
	);

	CREATE TABLE IF NOT EXISTS escalations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		date TEXT NOT NULL,
		escalation_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS qa_assessments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		assessment_date TEXT NOT NULL,
		assessments INTEGER
	);

	CREATE TABLE IF NOT EXISTS survey_tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		date TEXT NOT NULL,
		ticket_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS daily_sla (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		report_date TEXT NOT NULL,
		sla_percentage REAL
	);

	CREATE TABLE IF NOT EXISTS agent_performance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_lead_id TEXT,
		agent_name TEXT,
		date TEXT NOT NULL,
		tickets_resolved INTEGER,
		customer_satisfaction REAL
	);

	CREATE INDEX IF NOT EXISTS idx_calls_lead_date ON calls(team_lead_id, call_date);
	CREATE INDEX IF NOT EXISTS idx_emails_lead_date ON emails(team_lead_id, date);
	CREATE INDEX IF NOT EXISTS idx_live_chat_lead_date ON live_chat(team_lead_id, chat_date);
	CREATE INDEX IF NOT EXISTS idx_escalations_lead_date ON escalations(team_lead_id, date);
	CREATE INDEX IF NOT EXISTS idx_qa_assessments_lead_date ON qa_assessments(team_lead_id, assessment_date);
	CREATE INDEX IF NOT EXISTS idx_survey_tickets_lead_date ON survey_tickets(team_lead_id, date);
	CREATE INDEX IF NOT EXISTS idx_daily_sla_lead_date ON daily_sla(team_lead_id, report_date);
	CREATE INDEX IF NOT EXISTS idx_agent_performance_lead_date ON agent_performance(team_lead_id, date);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Ping checks the connection, matching the pgxpool signature used by health checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
