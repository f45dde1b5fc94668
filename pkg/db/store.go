package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fraud-watch/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS report_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT,
    report_type TEXT NOT NULL,
    format TEXT NOT NULL,
    chain TEXT NOT NULL DEFAULT 'eth',
    address TEXT NOT NULL,
    download_url TEXT,
    local_path TEXT,
    requested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    downloaded_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_report_jobs_time ON report_jobs(requested_at);
`

// Store is the on-disk replacement for browser local storage. Writes are
// last-write-wins per key; nothing spans more than one key.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Key/value ----

func (s *Store) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ---- Report jobs ----

func (s *Store) InsertReportJob(j ReportJob) (int64, error) {
	if j.RequestedAt.IsZero() {
		j.RequestedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO report_jobs (job_id, report_type, format, chain, address, download_url, local_path, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.JobID, j.ReportType, j.Format, string(j.Chain), j.Address, j.DownloadURL, j.LocalPath, j.RequestedAt)
	if err != nil {
		return 0, fmt.Errorf("insert report job: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) MarkReportJobDownloaded(id int64, localPath string) error {
	_, err := s.db.Exec("UPDATE report_jobs SET local_path = ?, downloaded_at = ? WHERE id = ?",
		localPath, time.Now().UTC(), id)
	return err
}

func (s *Store) ListReportJobs(limit int) ([]ReportJob, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(job_id,''), report_type, format, chain, address,
		       COALESCE(download_url,''), COALESCE(local_path,''), requested_at, downloaded_at
		FROM report_jobs ORDER BY requested_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ReportJob
	for rows.Next() {
		var j ReportJob
		var chain string
		var downloaded sql.NullTime
		if err := rows.Scan(&j.ID, &j.JobID, &j.ReportType, &j.Format, &chain, &j.Address,
			&j.DownloadURL, &j.LocalPath, &j.RequestedAt, &downloaded); err != nil {
			return nil, err
		}
		j.Chain = config.Chain(chain)
		if downloaded.Valid {
			t := downloaded.Time
			j.DownloadedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
