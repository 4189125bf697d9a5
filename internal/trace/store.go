// Package trace persists pipeline execution records to PostgreSQL for
// debugging. It is optional observability: jobs themselves live only in
// memory, and every write path here is best-effort.
package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// maxJobs bounds how many traced jobs are retained.
const maxJobs = 200

// Store persists trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the trace database at connStr and applies migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new traced job and prunes old ones.
func (s *Store) CreateJob(id, url, instrument string) error {
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, url, instrument, started_at, status) VALUES ($1, $2, $3, $4, 'running')`,
		id, url, instrument, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM jobs WHERE id NOT IN (SELECT id FROM jobs ORDER BY started_at DESC LIMIT $1)`,
		maxJobs,
	)
	return err
}

// EndJob finalizes a traced job.
func (s *Store) EndJob(id string, durationMs float64, title, status, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET ended_at = $1, duration_ms = $2, title = $3, status = $4, error_msg = $5 WHERE id = $6`,
		time.Now().UTC(), durationMs, title, status, errMsg, id,
	)
	return err
}

// CreateStage inserts a completed stage.
func (s *Store) CreateStage(st Stage) error {
	_, err := s.db.Exec(
		`INSERT INTO stages (id, job_id, name, started_at, duration_ms, detail, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		st.ID, st.JobID, st.Name, st.StartedAt.UTC(),
		st.DurationMs, st.Detail, st.Status, st.Error,
	)
	return err
}

// ListJobs returns traced jobs ordered newest first, with stage counts.
func (s *Store) ListJobs(limit, offset int) ([]JobRecord, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT j.id, j.url, j.instrument, j.title, j.started_at, j.ended_at, j.duration_ms, j.status, j.error_msg,
		       COUNT(st.id) as stage_count
		FROM jobs j
		LEFT JOIN stages st ON st.job_id = j.id
		GROUP BY j.id
		ORDER BY j.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var rec JobRecord
		var endedAt sql.NullTime
		if err = rows.Scan(&rec.ID, &rec.URL, &rec.Instrument, &rec.Title, &rec.StartedAt, &endedAt, &rec.DurationMs, &rec.Status, &rec.Error, &rec.StageCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			rec.EndedAt = &endedAt.Time
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// GetJob returns one traced job with its stages in execution order.
func (s *Store) GetJob(id string) (*JobRecord, []Stage, error) {
	var rec JobRecord
	var endedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, url, instrument, title, started_at, ended_at, duration_ms, status, error_msg FROM jobs WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.URL, &rec.Instrument, &rec.Title, &rec.StartedAt, &endedAt, &rec.DurationMs, &rec.Status, &rec.Error)
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT id, job_id, name, started_at, duration_ms, detail, status, error_msg
		FROM stages
		WHERE job_id = $1
		ORDER BY started_at ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var st Stage
		if err = rows.Scan(&st.ID, &st.JobID, &st.Name, &st.StartedAt, &st.DurationMs, &st.Detail, &st.Status, &st.Error); err != nil {
			return nil, nil, err
		}
		stages = append(stages, st)
	}
	return &rec, stages, rows.Err()
}
