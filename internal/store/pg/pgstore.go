// Package pg persists the decision journal: an append-only record of
// the admissions, enrollments, elections and ballots the ledger has
// accepted. It is a reporting aid, never an authority; the ledger
// state machine remains the source of truth.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// ElectionCreated records a new registry entry. The window bounds are
// stored as received, in their dd-mm-YYYY hh:mm wire form.
func (s *Store) ElectionCreated(ctx context.Context, electionID uint64, startsAt, endsAt string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into elections(id, starts_at, ends_at, created_at)
		values ($1, $2, $3, now())
	`, int64(electionID), startsAt, endsAt)
	return err
}

// AdmissionDecided records one pop of the global admission queue.
func (s *Store) AdmissionDecided(ctx context.Context, account string, accepted bool) error {
	_, err := s.db.ExecContext(ctx, `
		insert into admissions(account, accepted, decided_at)
		values ($1, $2, now())
	`, account, accepted)
	return err
}

// EnrollmentDecided records one pop of an election's enrollment queue.
func (s *Store) EnrollmentDecided(ctx context.Context, electionID uint64, account, role string, accepted bool) error {
	_, err := s.db.ExecContext(ctx, `
		insert into enrollments(election_id, account, role, accepted, decided_at)
		values ($1, $2, $3, $4, now())
	`, int64(electionID), account, role, accepted)
	return err
}

// BallotCast records an accepted ballot. Only the election and the
// candidate number are stored; the journal carries no voter identity.
func (s *Store) BallotCast(ctx context.Context, electionID uint64, candidateNumber uint32) error {
	_, err := s.db.ExecContext(ctx, `
		insert into ballots(election_id, candidate_number, cast_at)
		values ($1, $2, now())
	`, int64(electionID), int64(candidateNumber))
	return err
}

// BallotCounts aggregates the journal's view of one election's tallies.
// Useful to cross-check the ledger's results after the fact.
func (s *Store) BallotCounts(ctx context.Context, electionID uint64) (map[uint32]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select candidate_number, count(*)
		from ballots
		where election_id = $1
		group by candidate_number
	`, int64(electionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uint32]uint64)
	for rows.Next() {
		var number int64
		var n int64
		if err := rows.Scan(&number, &n); err != nil {
			return nil, err
		}
		counts[uint32(number)] = uint64(n)
	}
	return counts, rows.Err()
}

// EnrollmentHistory lists the decisions taken for one election in the
// order they were made.
type EnrollmentRecord struct {
	Account   string
	Role      string
	Accepted  bool
	DecidedAt time.Time
}

func (s *Store) EnrollmentHistory(ctx context.Context, electionID uint64) ([]EnrollmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select account, role, accepted, decided_at
		from enrollments
		where election_id = $1
		order by decided_at asc
	`, int64(electionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EnrollmentRecord
	for rows.Next() {
		var rec EnrollmentRecord
		if err := rows.Scan(&rec.Account, &rec.Role, &rec.Accepted, &rec.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
