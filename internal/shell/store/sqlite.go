package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database: "+err.Error(),
			fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database: "+err.Error(),
			fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) AddRecord(ctx context.Context, runID string, rec domain.Record) error {
	return addRecord(ctx, s.db, runID, rec)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, runID string) ([]domain.Record, error) {
	return listRecords(ctx, s.db, runID)
}

func (s *SQLiteStore) FindRecordsByAddress(ctx context.Context, address domain.Address) ([]RunRecord, error) {
	return findRecordsByAddress(ctx, s.db, address)
}

// WithTx runs fn within a transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) AddRecord(ctx context.Context, runID string, rec domain.Record) error {
	return addRecord(ctx, s.tx, runID, rec)
}

func (s *txSQLiteStore) ListRecords(ctx context.Context, runID string) ([]domain.Record, error) {
	return listRecords(ctx, s.tx, runID)
}

func (s *txSQLiteStore) FindRecordsByAddress(ctx context.Context, address domain.Address) ([]RunRecord, error) {
	return findRecordsByAddress(ctx, s.tx, address)
}

// WithTx is a no-op inside a transaction; fn runs in the enclosing one.
func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

// Close is a no-op for transaction stores.
func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	Status       string  `db:"status"`
	Account      string  `db:"account"`
	NetworkID    string  `db:"network_id"`
	Plan         string  `db:"plan"`
	FailedStep   string  `db:"failed_step"`
	ErrorMessage string  `db:"error_message"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func runToRow(op string, run *domain.Run) (map[string]any, error) {
	plan := run.Plan
	if plan == nil {
		plan = domain.Plan{}
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, NewStoreError(op, "run", run.ID, "failed to serialize plan", ErrInvalidData)
	}

	var finishedAt *string
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(timeLayout)
		finishedAt = &s
	}

	return map[string]any{
		"id":            run.ID,
		"status":        string(run.Status),
		"account":       run.Identity.Account.String(),
		"network_id":    run.Identity.NetworkID,
		"plan":          string(planJSON),
		"failed_step":   run.FailedStep,
		"error_message": run.ErrorMessage,
		"started_at":    run.StartedAt.UTC().Format(timeLayout),
		"finished_at":   finishedAt,
	}, nil
}

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	row, err := runToRow("CreateRun", run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (
			id, status, account, network_id, plan,
			failed_step, error_message, started_at, finished_at
		) VALUES (
			:id, :status, :account, :network_id, :plan,
			:failed_step, :error_message, :started_at, :finished_at
		)`

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(&row)
}

func updateRun(ctx context.Context, exec executor, run *domain.Run) error {
	row, err := runToRow("UpdateRun", run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			status = :status,
			account = :account,
			network_id = :network_id,
			plan = :plan,
			failed_step = :failed_step,
			error_message = :error_message,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}

	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM runs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// =============================================================================
// Record Operations
// =============================================================================

// recordRow represents a finalized step row in the database.
type recordRow struct {
	RunID         string `db:"run_id"`
	Position      int    `db:"position"`
	Step          string `db:"step"`
	Template      string `db:"template"`
	Address       string `db:"address"`
	TxHash        string `db:"tx_hash"`
	BlockNumber   int64  `db:"block_number"`
	Confirmations int64  `db:"confirmations"`
	GasUsed       int64  `db:"gas_used"`
	FinalizedAt   string `db:"finalized_at"`
}

func addRecord(ctx context.Context, exec executor, runID string, rec domain.Record) error {
	query := `
		INSERT INTO records (
			run_id, position, step, template, address, tx_hash,
			block_number, confirmations, gas_used, finalized_at
		) VALUES (
			:run_id,
			(SELECT COUNT(*) FROM records WHERE run_id = :run_id),
			:step, :template, :address, :tx_hash,
			:block_number, :confirmations, :gas_used, :finalized_at
		)`

	row := map[string]any{
		"run_id":        runID,
		"step":          rec.Step,
		"template":      rec.Template,
		"address":       rec.Address().String(),
		"tx_hash":       rec.Finalization.TxHash,
		"block_number":  int64(rec.Finalization.BlockNumber),
		"confirmations": int64(rec.Finalization.Confirmations),
		"gas_used":      int64(rec.Finalization.GasUsed),
		"finalized_at":  rec.FinalizedAt.UTC().Format(timeLayout),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("AddRecord", "record", runID+"/"+rec.Step, "step already recorded", ErrDuplicateRecord)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AddRecord", "record", runID+"/"+rec.Step, "run not found", ErrForeignKey)
		}
		return NewStoreError("AddRecord", "record", runID+"/"+rec.Step, err.Error(), err)
	}

	return nil
}

func listRecords(ctx context.Context, exec executor, runID string) ([]domain.Record, error) {
	query := `SELECT * FROM records WHERE run_id = ? ORDER BY position`

	var rows []recordRow
	if err := exec.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewStoreError("ListRecords", "record", runID, err.Error(), err)
	}

	records := make([]domain.Record, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func findRecordsByAddress(ctx context.Context, exec executor, address domain.Address) ([]RunRecord, error) {
	query := `SELECT * FROM records WHERE address = ? COLLATE NOCASE ORDER BY finalized_at`

	var rows []recordRow
	if err := exec.SelectContext(ctx, &rows, query, address.String()); err != nil {
		return nil, NewStoreError("FindRecordsByAddress", "record", address.String(), err.Error(), err)
	}

	out := make([]RunRecord, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, RunRecord{RunID: rows[i].RunID, Record: rec})
	}
	return out, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToRun(row *runRow) (*domain.Run, error) {
	var plan domain.Plan
	if row.Plan != "" {
		if err := json.Unmarshal([]byte(row.Plan), &plan); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse plan", ErrInvalidData)
		}
	}
	if len(plan) == 0 {
		plan = nil
	}

	startedAt, err := time.Parse(timeLayout, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse started_at", ErrInvalidData)
	}

	var finishedAt *time.Time
	if row.FinishedAt != nil {
		t, err := time.Parse(timeLayout, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse finished_at", ErrInvalidData)
		}
		finishedAt = &t
	}

	return &domain.Run{
		ID:     row.ID,
		Status: domain.RunStatus(row.Status),
		Identity: domain.Identity{
			Account:   domain.Address(row.Account),
			NetworkID: row.NetworkID,
		},
		Plan:         plan,
		FailedStep:   row.FailedStep,
		ErrorMessage: row.ErrorMessage,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}, nil
}

func rowToRecord(row *recordRow) (domain.Record, error) {
	finalizedAt, err := time.Parse(timeLayout, row.FinalizedAt)
	if err != nil {
		return domain.Record{}, NewStoreError("rowToRecord", "record", row.RunID+"/"+row.Step, "failed to parse finalized_at", ErrInvalidData)
	}

	return domain.Record{
		Step:     row.Step,
		Template: row.Template,
		Finalization: domain.Finalization{
			Address:       domain.Address(row.Address),
			TxHash:        row.TxHash,
			BlockNumber:   uint64(row.BlockNumber),
			Confirmations: uint64(row.Confirmations),
			GasUsed:       uint64(row.GasUsed),
		},
		FinalizedAt: finalizedAt,
	}, nil
}
