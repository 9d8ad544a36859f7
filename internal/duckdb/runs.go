package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcfid/internal/bench"
)

// FileFingerprint holds stat-based identity for a bench input file, so a
// stored run can be told apart from runs against a modified input with the
// same path.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run is one stored benchmark row.
type Run struct {
	Input        string
	InputSize    int64
	InputModTime time.Time
	Lines        int64
	Records      int64
	Workers      int
	Iterations   int
	BestTimeMS   float64
	AllocBytes   int64
	ThroughputMB float64
	MD5          string
	CreatedAt    time.Time
}

// WriteRuns batch-inserts bench results using the Appender API.
func (s *Store) WriteRuns(results []*bench.Result) error {
	if len(results) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "bench_runs")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range results {
		fp, err := StatFile(r.Input)
		if err != nil {
			return fmt.Errorf("fingerprint input: %w", err)
		}
		if err := appender.AppendRow(
			r.Input, fp.Size, fp.ModTime,
			r.Lines, r.Records,
			int32(r.Workers), int32(r.Iterations),
			float64(r.BestTime)/float64(time.Millisecond),
			int64(r.AllocBytes),
			r.Throughput(),
			r.MD5, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("append bench run: %w", err)
		}
	}

	return appender.Flush()
}

// WriteRun stores a single bench result.
func (s *Store) WriteRun(r *bench.Result) error {
	return s.WriteRuns([]*bench.Result{r})
}

// ListRuns returns up to limit stored runs, newest first. limit <= 0 means
// no limit.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	q := `SELECT input, input_size, input_modtime, lines, records,
		workers, iterations, best_time_ms, alloc_bytes, throughput_mb_s,
		md5, created_at
		FROM bench_runs ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query bench runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var workers, iterations int32
		if err := rows.Scan(
			&r.Input, &r.InputSize, &r.InputModTime, &r.Lines, &r.Records,
			&workers, &iterations, &r.BestTimeMS, &r.AllocBytes,
			&r.ThroughputMB, &r.MD5, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bench run: %w", err)
		}
		r.Workers = int(workers)
		r.Iterations = int(iterations)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListRunsForInput returns stored runs for one input path, newest first.
func (s *Store) ListRunsForInput(input string) ([]Run, error) {
	rows, err := s.db.Query(`SELECT input, input_size, input_modtime, lines,
		records, workers, iterations, best_time_ms, alloc_bytes,
		throughput_mb_s, md5, created_at
		FROM bench_runs WHERE input = ? ORDER BY created_at DESC`, input)
	if err != nil {
		return nil, fmt.Errorf("query bench runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var workers, iterations int32
		if err := rows.Scan(
			&r.Input, &r.InputSize, &r.InputModTime, &r.Lines, &r.Records,
			&workers, &iterations, &r.BestTimeMS, &r.AllocBytes,
			&r.ThroughputMB, &r.MD5, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bench run: %w", err)
		}
		r.Workers = int(workers)
		r.Iterations = int(iterations)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ClearRuns removes all stored benchmark runs.
func (s *Store) ClearRuns() error {
	_, err := s.db.Exec("DELETE FROM bench_runs")
	return err
}
