// Command smoke drives a full election lifecycle against a running
// sufragio-api node and verifies the tallies add up. It is meant for
// staging checks, not as a load generator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sufragio.org/internal/ledger"
	"sufragio.org/internal/ledger/remote"
)

func main() {
	base := os.Getenv("SUFRAGIO_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	adminRaw := os.Getenv("SUFRAGIO_ADMIN_ADDRESS")
	if adminRaw == "" {
		log.Fatal("SUFRAGIO_ADMIN_ADDRESS is required")
	}
	admin, err := ledger.ParseAccountID(adminRaw)
	if err != nil {
		log.Fatalf("bad SUFRAGIO_ADMIN_ADDRESS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c := remote.New(base)

	candidate := ledger.MustParseAccountID("0x00000000000000000000000000000000000000c1")
	voterA := ledger.MustParseAccountID("0x00000000000000000000000000000000000000a1")
	voterB := ledger.MustParseAccountID("0x00000000000000000000000000000000000000a2")

	must("enable registration", c.EnableRegistration(ctx, admin))

	start := time.Now().UTC().Add(1 * time.Minute)
	end := start.Add(10 * time.Minute)
	electionID, err := c.CreateElection(ctx, admin,
		start.Format(ledger.DateLayout), end.Format(ledger.DateLayout))
	must("create election", err)
	log.Printf("election %d created (%s .. %s)", electionID,
		start.Format(ledger.DateLayout), end.Format(ledger.DateLayout))

	for i, acct := range []ledger.AccountID{candidate, voterA, voterB} {
		must("register", c.Register(ctx, acct,
			fmt.Sprintf("Smoke%d", i), "Test", fmt.Sprintf("SMK-%04d", i)))
		u, err := c.ProcessNextPendingUser(ctx, admin, true)
		must("admit user", err)
		log.Printf("admitted %s (%s %s)", u.ID.Hex(), u.Name, u.Surname)
	}

	must("candidate enroll", c.JoinElection(ctx, candidate, electionID, ledger.RoleCandidate))
	must("voterA enroll", c.JoinElection(ctx, voterA, electionID, ledger.RoleVoter))
	must("voterB enroll", c.JoinElection(ctx, voterB, electionID, ledger.RoleVoter))
	for i := 0; i < 3; i++ {
		e, err := c.ProcessElectionEnrollment(ctx, admin, electionID, true)
		must("admit enrollment", err)
		log.Printf("enrolled %s as %s", e.ID.Hex(), e.Role)
	}

	log.Printf("waiting for voting window to open...")
	time.Sleep(time.Until(start) + time.Second)

	must("start voting", c.StartVoting(ctx, admin, electionID))

	info, err := c.CandidateInfo(ctx, voterA, electionID, 1)
	must("candidate info", err)
	log.Printf("candidate #1 is %s %s", info.Name, info.Surname)

	must("voterA ballot", c.CastVote(ctx, voterA, electionID, 1))
	must("voterB ballot", c.CastVote(ctx, voterB, electionID, 1))

	// A second ballot from the same voter has to be refused.
	if err := c.CastVote(ctx, voterA, electionID, 1); err == nil {
		log.Fatal("duplicate ballot was accepted")
	}

	must("assign generator", c.AssignReportGenerator(ctx, admin, admin))

	// Results stay sealed until the election window closes.
	if _, err := c.Results(ctx, admin, electionID); err == nil {
		log.Fatal("results were readable before the election ended")
	}

	log.Printf("waiting for the election to close...")
	time.Sleep(time.Until(end) + time.Second)

	res, err := c.Results(ctx, admin, electionID)
	must("results", err)
	if res.TotalVoters != 2 || res.VotesCast != 2 {
		log.Fatalf("tally mismatch: %d voters, %d ballots", res.TotalVoters, res.VotesCast)
	}
	var counted uint64
	for _, cv := range res.Candidates {
		counted += uint64(cv.Votes)
	}
	if counted != uint64(res.VotesCast) {
		log.Fatalf("ballot conservation violated: %d counted vs %d cast", counted, res.VotesCast)
	}

	fmt.Println("✅ sufragio smoke test passed")
}

func must(step string, err error) {
	if err != nil {
		log.Fatalf("%s: %v", step, err)
	}
}
