package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
)

// setupElection wires a ledger with one election open for enrollment
// and two accepted users, bob and carla.
func setupElection(t *testing.T) (*Ledger, *uint64, context.Context) {
	t.Helper()
	admin := addr(1)
	l, now := newTestLedger(admin)
	ctx := context.Background()

	if err := l.EnableRegistration(ctx, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateElection(ctx, admin, "01-01-2025 12:00", "31-01-2025 12:00"); err != nil {
		t.Fatal(err)
	}
	for _, a := range []AccountID{addr(2), addr(3)} {
		if err := l.Register(ctx, a, "U", "S", "d"); err != nil {
			t.Fatal(err)
		}
		if _, err := l.ProcessNextPendingUser(ctx, admin, true); err != nil {
			t.Fatal(err)
		}
	}
	return l, now, ctx
}

func TestJoinElectionChecks(t *testing.T) {
	l, now, ctx := setupElection(t)
	admin, bob, carla := addr(1), addr(2), addr(3)
	e := l.election(1)

	if err := l.JoinElection(ctx, addr(9), 1, RoleVoter); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if err := l.JoinElection(ctx, bob, 7, RoleVoter); !errors.Is(err, ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
	if err := l.JoinElection(ctx, bob, 1, Role(9)); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if err := l.JoinElection(ctx, bob, 1, RoleVoter); err != nil {
		t.Fatal(err)
	}
	if err := l.JoinElection(ctx, bob, 1, RoleCandidate); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}

	// An admitted member cannot queue a second time either.
	if _, err := l.ProcessElectionEnrollment(ctx, admin, 1, true); err != nil {
		t.Fatal(err)
	}
	if err := l.JoinElection(ctx, bob, 1, RoleCandidate); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled after admission, got %v", err)
	}

	// A rejected identity stays out of this election for good.
	if err := l.JoinElection(ctx, carla, 1, RoleVoter); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ProcessElectionEnrollment(ctx, admin, 1, false); err != nil {
		t.Fatal(err)
	}
	if err := l.JoinElection(ctx, carla, 1, RoleVoter); !errors.Is(err, ErrPreviouslyRejected) {
		t.Fatalf("expected ErrPreviouslyRejected, got %v", err)
	}

	// Enrollment closes once the clock reaches the start time.
	*now = e.StartsAt
	if err := l.JoinElection(ctx, carla, 1, RoleVoter); !errors.Is(err, ErrVotingAlreadyStarted) {
		t.Fatalf("expected ErrVotingAlreadyStarted, got %v", err)
	}
}

func TestProcessElectionEnrollmentRouting(t *testing.T) {
	l, _, ctx := setupElection(t)
	admin, bob, carla := addr(1), addr(2), addr(3)

	if err := l.JoinElection(ctx, bob, 1, RoleVoter); err != nil {
		t.Fatal(err)
	}
	if err := l.JoinElection(ctx, carla, 1, RoleCandidate); err != nil {
		t.Fatal(err)
	}

	peek, err := l.NextPendingElectionUser(ctx, admin, 1)
	if err != nil {
		t.Fatal(err)
	}
	if peek.ID != bob || peek.Role != RoleVoter {
		t.Fatalf("queue head = %+v", peek)
	}

	got, err := l.ProcessElectionEnrollment(ctx, admin, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != bob {
		t.Fatalf("processed %s first, want %s", got.ID, bob)
	}
	got, err = l.ProcessElectionEnrollment(ctx, admin, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != carla {
		t.Fatalf("processed %s second, want %s", got.ID, carla)
	}

	e := l.election(1)
	if len(e.Voters) != 1 || e.Voters[0].ID != bob || e.Voters[0].Voted {
		t.Fatalf("voters = %+v", e.Voters)
	}
	if len(e.Candidates) != 1 || e.Candidates[0].ID != carla || e.Candidates[0].Number != 1 {
		t.Fatalf("candidates = %+v", e.Candidates)
	}

	if _, err := l.ProcessElectionEnrollment(ctx, admin, 1, true); !errors.Is(err, ErrNoPendingUsers) {
		t.Fatalf("expected ErrNoPendingUsers, got %v", err)
	}
	if _, err := l.ProcessElectionEnrollment(ctx, bob, 1, true); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
}

func TestCandidateNumberOverflowKeepsQueueEntry(t *testing.T) {
	e := &Election{
		Candidates:    []CandidateTally{{ID: addr(3), Number: 1}},
		Pending:       []Enrollment{{ID: addr(2), Role: RoleCandidate}},
		maxCandidates: 1,
	}

	if _, err := e.processNextEnrollment(true); !errors.Is(err, ErrCandidateIDOverflow) {
		t.Fatalf("expected ErrCandidateIDOverflow, got %v", err)
	}
	if len(e.Pending) != 1 {
		t.Fatal("overflow must not consume the queue entry")
	}
}

func TestStartVoting(t *testing.T) {
	l, now, ctx := setupElection(t)
	admin := addr(1)
	e := l.election(1)

	if err := l.StartVoting(ctx, addr(2), 1); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := l.StartVoting(ctx, admin, 7); !errors.Is(err, ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
	if err := l.StartVoting(ctx, admin, 1); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}

	*now = e.StartsAt
	if err := l.StartVoting(ctx, admin, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.StartVoting(ctx, admin, 1); !errors.Is(err, ErrVotingAlreadyStarted) {
		t.Fatalf("expected ErrVotingAlreadyStarted, got %v", err)
	}

	*now = e.EndsAt + 1
	e.Started = false
	if err := l.StartVoting(ctx, admin, 1); !errors.Is(err, ErrVotingEnded) {
		t.Fatalf("expected ErrVotingEnded, got %v", err)
	}
}

func TestCastVoteLifecycle(t *testing.T) {
	l, now, ctx := setupElection(t)
	admin, bob, carla := addr(1), addr(2), addr(3)

	if err := l.JoinElection(ctx, carla, 1, RoleCandidate); err != nil {
		t.Fatal(err)
	}
	if err := l.JoinElection(ctx, bob, 1, RoleVoter); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ProcessElectionEnrollment(ctx, admin, 1, true); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ProcessElectionEnrollment(ctx, admin, 1, true); err != nil {
		t.Fatal(err)
	}

	e := l.election(1)

	if err := l.CastVote(ctx, bob, 1, 1); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}

	// Voting begins lazily on the first ballot past the start time, with
	// no StartVoting call in between.
	*now = e.StartsAt + 1
	if err := l.CastVote(ctx, bob, 1, 1); err != nil {
		t.Fatal(err)
	}
	if !e.Started {
		t.Fatal("first ballot must mark the election started")
	}
	if err := l.CastVote(ctx, bob, 1, 1); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	if err := l.CastVote(ctx, carla, 1, 1); !errors.Is(err, ErrNotAVoter) {
		t.Fatalf("candidates cannot vote, got %v", err)
	}
	if err := l.CastVote(ctx, bob, 1, 2); !errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got %v", err)
	}
	if err := l.CastVote(ctx, bob, 7, 1); !errors.Is(err, ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
	if err := l.CastVote(ctx, addr(9), 1, 1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	*now = e.EndsAt + 1
	if err := l.CastVote(ctx, bob, 1, 1); !errors.Is(err, ErrVotingEnded) {
		t.Fatalf("expected ErrVotingEnded, got %v", err)
	}
}

func TestVotesConservation(t *testing.T) {
	// Sum of tallies always equals the number of flagged voters.
	e := &Election{
		Candidates: []CandidateTally{{ID: addr(10), Number: 1}, {ID: addr(11), Number: 2}},
	}
	for b := byte(20); b < 30; b++ {
		e.Voters = append(e.Voters, VoterEntry{ID: addr(b)})
	}

	for i, v := range e.Voters {
		if err := e.castVote(v.ID, uint32(i%2)+1); err != nil {
			t.Fatal(err)
		}
	}

	var tallies, flagged uint64
	for _, c := range e.Candidates {
		tallies += uint64(c.Votes)
	}
	for _, v := range e.Voters {
		if v.Voted {
			flagged++
		}
	}
	if tallies != flagged || tallies != 10 {
		t.Fatalf("tallies=%d flagged=%d, want 10 each", tallies, flagged)
	}
}

func TestCastVoteOverflowRollsBackFlag(t *testing.T) {
	bob := addr(2)
	e := &Election{
		Candidates: []CandidateTally{{ID: addr(3), Number: 1, Votes: math.MaxUint32}},
		Voters:     []VoterEntry{{ID: bob}},
	}

	if err := e.castVote(bob, 1); !errors.Is(err, ErrTallyOverflow) {
		t.Fatalf("expected ErrTallyOverflow, got %v", err)
	}
	if e.Voters[0].Voted {
		t.Fatal("voted flag must be rolled back on tally overflow")
	}
	if e.Candidates[0].Votes != math.MaxUint32 {
		t.Fatal("tally must be unchanged on overflow")
	}
}
