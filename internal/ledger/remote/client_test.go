package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"sufragio.org/internal/auth"
	"sufragio.org/internal/httpapi"
	"sufragio.org/internal/ledger"
	"sufragio.org/internal/stream"
)

// startNode boots a real API server over an in-memory ledger and
// returns a client pointed at it, plus the clock pointer.
func startNode(t *testing.T, admin ledger.AccountID) (*Client, *uint64) {
	t.Helper()

	t.Setenv("SUFRAGIO_AUTH_SECRET", "remote-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	now := uint64(1_000)
	lg := ledger.New(admin, ledger.WithClock(func() time.Time {
		return time.UnixMilli(int64(now))
	}))

	api := httpapi.New(httpapi.ReadyProbe{}, "test", lg, stream.New(), nil)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return New(srv.URL, WithHTTPClient(srv.Client())), &now
}

func TestClientRoundTrip(t *testing.T) {
	admin := common.HexToAddress("0x0000000000000000000000000000000000000001")
	voter := common.HexToAddress("0x0000000000000000000000000000000000000002")
	candidate := common.HexToAddress("0x0000000000000000000000000000000000000003")

	c, now := startNode(t, admin)
	ctx := context.Background()

	if err := c.EnableRegistration(ctx, admin); err != nil {
		t.Fatalf("enable registration: %v", err)
	}
	id, err := c.CreateElection(ctx, admin, "01-01-2025 12:00", "01-02-2025 12:00")
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if id != 1 {
		t.Fatalf("election id = %d, want 1", id)
	}

	if err := c.Register(ctx, voter, "Ana", "Paz", "111"); err != nil {
		t.Fatalf("register voter: %v", err)
	}
	if err := c.Register(ctx, candidate, "Luis", "Sol", "222"); err != nil {
		t.Fatalf("register candidate: %v", err)
	}

	head, err := c.NextPendingUser(ctx, admin)
	if err != nil {
		t.Fatalf("peek queue: %v", err)
	}
	if head.ID != voter {
		t.Fatalf("queue head = %s, want voter", head.ID.Hex())
	}
	for i := 0; i < 2; i++ {
		if _, err := c.ProcessNextPendingUser(ctx, admin, true); err != nil {
			t.Fatalf("admit user %d: %v", i, err)
		}
	}

	if err := c.JoinElection(ctx, voter, id, ledger.RoleVoter); err != nil {
		t.Fatalf("enroll voter: %v", err)
	}
	if err := c.JoinElection(ctx, candidate, id, ledger.RoleCandidate); err != nil {
		t.Fatalf("enroll candidate: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.ProcessElectionEnrollment(ctx, admin, id, true); err != nil {
			t.Fatalf("admit enrollment %d: %v", i, err)
		}
	}

	info, err := c.CandidateInfo(ctx, voter, id, 1)
	if err != nil {
		t.Fatalf("candidate info: %v", err)
	}
	if info.ID != candidate {
		t.Fatalf("candidate 1 = %s, want %s", info.ID.Hex(), candidate.Hex())
	}

	*now = uint64(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli())
	if err := c.StartVoting(ctx, admin, id); err != nil {
		t.Fatalf("start voting: %v", err)
	}
	if err := c.CastVote(ctx, voter, id, 1); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	*now = uint64(time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC).UnixMilli()) + 1
	res, err := c.Results(ctx, voter, id)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if res.TotalVoters != 1 || res.VotesCast != 1 {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestClientMapsSentinels(t *testing.T) {
	admin := common.HexToAddress("0x0000000000000000000000000000000000000001")
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	c, _ := startNode(t, admin)
	ctx := context.Background()

	if err := c.EnableRegistration(ctx, stranger); !errors.Is(err, ledger.ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := c.StartVoting(ctx, admin, 42); !errors.Is(err, ledger.ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
	if _, err := c.CreateElection(ctx, admin, "garbage", "01-02-2025 12:00"); !errors.Is(err, ledger.ErrBadStartDate) {
		t.Fatalf("expected ErrBadStartDate, got %v", err)
	}
	if _, err := c.UserInfo(ctx, stranger, admin); !errors.Is(err, ledger.ErrNotReportGenerator) {
		t.Fatalf("expected ErrNotReportGenerator, got %v", err)
	}
}
