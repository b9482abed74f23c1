package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nidhogg/nuka-commands/internal/command"
)

// Run is one recorded dispatch.
type Run struct {
	ID       string            `json:"id"`
	Command  string            `json:"command"`
	Format   string            `json:"format"`
	Sender   string            `json:"sender"`
	Outcome  string            `json:"outcome"`
	Args     map[string]string `json:"args"`
	Flags    map[string]string `json:"flags"`
	Error    string            `json:"error,omitempty"`
	Started  time.Time         `json:"started_at"`
	Finished time.Time         `json:"finished_at"`
}

// Duration is how long the dispatch took.
func (r Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// RecordRun inserts a run. Recording the same ID twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	args, err := json.Marshal(nonNil(r.Args))
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	flags, err := json.Marshal(nonNil(r.Flags))
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO command_runs (id, command, format, sender, outcome, args, flags, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Command, r.Format, r.Sender, r.Outcome, args, flags, r.Error, r.Started, r.Finished,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, command, format, sender, outcome, args, flags, error, started_at, finished_at
		FROM command_runs
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			args, flags []byte
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.Format, &r.Sender, &r.Outcome,
			&args, &flags, &r.Error, &r.Started, &r.Finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(args, &r.Args); err != nil {
			return nil, fmt.Errorf("unmarshal args: %w", err)
		}
		if err := json.Unmarshal(flags, &r.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// OutcomeCounts returns how many runs ended with each outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT outcome, COUNT(*) FROM command_runs GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// RunLister exposes the store to the runs command.
func (s *Store) RunLister() command.RunLister { return runLister{s} }

type runLister struct{ s *Store }

func (l runLister) RecentRuns(ctx context.Context, limit int) ([]command.RunInfo, error) {
	runs, err := l.s.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]command.RunInfo, len(runs))
	for i, r := range runs {
		out[i] = command.RunInfo{
			ID:       r.ID,
			Command:  r.Command,
			Sender:   r.Sender,
			Outcome:  r.Outcome,
			Error:    r.Error,
			Duration: r.Duration(),
			Finished: r.Finished,
		}
	}
	return out, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
