package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists job records, attachments and timelogs.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened state database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func now() string { return time.Now().UTC().Format(timeFormat) }

// Create inserts a queued job and returns its id.
func (s *Store) Create(ctx context.Context, description, user string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("description is empty")
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs(id, description, username, status, created_at)
VALUES(?, ?, ?, ?, ?);
`, id, description, user, StatusQueued, now())
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

// MarkRunning moves a queued job to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, started_at = ?
WHERE id = ? AND status = ?;
`, StatusRunning, now(), id, StatusQueued)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return expectOne(res, id)
}

// Finish moves a job to a terminal status. Finishing an already terminal
// job is an error.
func (s *Store) Finish(ctx context.Context, id string, status Status, lastError string) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidStatus, status)
	}
	var errVal any
	if lastError != "" {
		errVal = lastError
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, error = ?, finished_at = ?,
  started_at = COALESCE(started_at, ?)
WHERE id = ? AND status IN (?, ?);
`, status, errVal, now(), now(), id, StatusQueued, StatusRunning)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return expectOne(res, id)
}

// SetRunningTo moves every running job to status and returns how many
// changed. Used to clear jobs left behind by a crashed process.
func (s *Store) SetRunningTo(ctx context.Context, status Status) (int64, error) {
	if !status.Terminal() {
		return 0, fmt.Errorf("%w: %q is not terminal", ErrInvalidStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, finished_at = ?
WHERE status = ?;
`, status, now(), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("update running jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Prune deletes terminal jobs that finished before cutoff, along with
// their attachments, and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM jobs
WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?;
`, StatusDone, StatusFailed, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Attach records a file against a job.
func (s *Store) Attach(ctx context.Context, id, name, path string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_attachments(job_id, name, path, created_at)
SELECT id, ?, ?, ? FROM jobs WHERE id = ?;
`, name, path, now(), id)
	if err != nil {
		return fmt.Errorf("attach to job: %w", err)
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?;`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check job: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// Get returns a job with its attachments.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, description, username, status, error, created_at, started_at, finished_at
FROM jobs WHERE id = ?;
`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT name, path, created_at FROM job_attachments
WHERE job_id = ? ORDER BY id ASC;
`, id)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Attachment
		var createdAtS string
		if err := rows.Scan(&a.Name, &a.Path, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.CreatedAt = parseTime(createdAtS)
		j.Attachments = append(j.Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return j, nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, description, username, status, error, created_at, started_at, finished_at
FROM jobs`
	args := []any{}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
		}
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// RecordTimelog stores a session duration.
func (s *Store) RecordTimelog(ctx context.Context, tl Timelog) (string, error) {
	if tl.ContextID == "" {
		return "", fmt.Errorf("timelog context id is empty")
	}
	if tl.ID == "" {
		tl.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO timelogs(id, context_id, username, application, started_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?);
`, tl.ID, tl.ContextID, tl.User, tl.Application, tl.StartedAt.UTC().Format(timeFormat), tl.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("record timelog: %w", err)
	}
	return tl.ID, nil
}

// Timelogs returns the timelogs of a context, oldest first.
func (s *Store) Timelogs(ctx context.Context, contextID string) ([]Timelog, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, context_id, username, application, started_at, duration_ms
FROM timelogs WHERE context_id = ? ORDER BY started_at ASC, rowid ASC;
`, contextID)
	if err != nil {
		return nil, fmt.Errorf("list timelogs: %w", err)
	}
	defer rows.Close()

	var out []Timelog
	for rows.Next() {
		var (
			tl         Timelog
			startedAtS string
			durationMS int64
		)
		if err := rows.Scan(&tl.ID, &tl.ContextID, &tl.User, &tl.Application, &startedAtS, &durationMS); err != nil {
			return nil, fmt.Errorf("scan timelog: %w", err)
		}
		tl.StartedAt = parseTime(startedAtS)
		tl.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, tl)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		j           Job
		statusS     string
		lastError   sql.NullString
		createdAtS  string
		startedAtS  sql.NullString
		finishedAtS sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Description, &j.User, &statusS, &lastError, &createdAtS, &startedAtS, &finishedAtS); err != nil {
		return nil, err
	}
	j.Status = Status(statusS)
	j.CreatedAt = parseTime(createdAtS)
	if lastError.Valid {
		j.Error = &lastError.String
	}
	if startedAtS.Valid {
		t := parseTime(startedAtS.String)
		j.StartedAt = &t
	}
	if finishedAtS.Valid {
		t := parseTime(finishedAtS.String)
		j.FinishedAt = &t
	}
	return &j, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w (or not in an expected state): %s", ErrJobNotFound, id)
	}
	return nil
}
