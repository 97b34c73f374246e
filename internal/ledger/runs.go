package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusPartial   Status = "partial"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Run is one generation run recorded in the ledger.
type Run struct {
	ID          string
	Fingerprint string
	Strategy    string
	Seed        uint64
	NumDays     int
	Format      string
	Partition   string
	Policy      string
	Status      Status
	Skipped     []int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// BeginRun records a new run in StatusRunning.
func (l *Ledger) BeginRun(ctx context.Context, r Run) error {
	if r.Status == "" {
		r.Status = StatusRunning
	}
	skipped, err := marshalSkipped(r.Skipped)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, fingerprint, strategy, seed, num_days, format, layout, policy, status, skipped, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Fingerprint,
		r.Strategy,
		strconv.FormatUint(r.Seed, 10),
		r.NumDays,
		r.Format,
		r.Partition,
		r.Policy,
		string(r.Status),
		skipped,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run and the days it skipped.
func (l *Ledger) FinishRun(ctx context.Context, id string, status Status, skipped []int, at time.Time) error {
	js, err := marshalSkipped(skipped)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, skipped = ?, finished_at = ? WHERE id = ?
	`, string(status), js, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Run returns the run with the given id.
func (l *Ledger) Run(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, strategy, seed, num_days, format, layout, policy, status, skipped, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Runs returns every recorded run, oldest first.
// Returns an empty slice (not nil) if there are none.
func (l *Ledger) Runs(ctx context.Context) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, fingerprint, strategy, seed, num_days, format, layout, policy, status, skipped, started_at, finished_at
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its file records.
func (l *Ledger) DeleteRun(ctx context.Context, id string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		seed     string
		status   string
		skipped  string
		started  string
		finished sql.NullString
	)
	err := s.Scan(&r.ID, &r.Fingerprint, &r.Strategy, &seed, &r.NumDays, &r.Format,
		&r.Partition, &r.Policy, &status, &skipped, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	r.Status = Status(status)
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Run{}, fmt.Errorf("scan run %s: seed: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(skipped), &r.Skipped); err != nil {
		return Run{}, fmt.Errorf("scan run %s: skipped: %w", r.ID, err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", r.ID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return Run{}, fmt.Errorf("scan run %s: finished_at: %w", r.ID, err)
		}
	}
	return r, nil
}

func marshalSkipped(days []int) (string, error) {
	if days == nil {
		days = []int{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
