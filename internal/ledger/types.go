package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AccountID identifies a participant on the ledger. It is an opaque,
// fixed-size account reference; equality is the only operation the
// ledger relies on.
type AccountID = common.Address

// ParseAccountID converts a hex string into an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	if !common.IsHexAddress(s) {
		return AccountID{}, fmt.Errorf("invalid account id %q", s)
	}
	return common.HexToAddress(s), nil
}

// MustParseAccountID is ParseAccountID for static, known-good inputs.
// It panics on malformed input and is intended for tests and tooling.
func MustParseAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Role is the capacity a registered user requests within an election.
type Role uint8

const (
	RoleVoter Role = iota + 1
	RoleCandidate
)

var ErrInvalidRole = errors.New("invalid role (must be voter or candidate)")

func (r Role) String() string {
	switch r {
	case RoleVoter:
		return "voter"
	case RoleCandidate:
		return "candidate"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps the wire representation back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "voter":
		return RoleVoter, nil
	case "candidate":
		return RoleCandidate, nil
	}
	return 0, ErrInvalidRole
}

func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleVoter, RoleCandidate:
		return []byte(r.String()), nil
	}
	return nil, ErrInvalidRole
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a directory record created on self-registration.
type User struct {
	ID         AccountID `json:"id"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	NationalID string    `json:"national_id"`
}

// VoterEntry tracks one admitted voter within one election. Voted is
// monotonic: once set it never resets, except for the tally-overflow
// rollback in castVote.
type VoterEntry struct {
	ID    AccountID `json:"id"`
	Voted bool      `json:"voted"`
}

// CandidateTally is the running count for one admitted candidate.
// Number is dense and 1-indexed, assigned at acceptance time.
type CandidateTally struct {
	ID     AccountID `json:"id"`
	Number uint32    `json:"number"`
	Votes  uint32    `json:"votes"`
}

// Enrollment is a queued request to join an election in a given role.
type Enrollment struct {
	ID   AccountID `json:"id"`
	Role Role      `json:"role"`
}

// CandidateVotes is one row of a results snapshot.
type CandidateVotes struct {
	ID    AccountID `json:"id"`
	Votes uint64    `json:"votes"`
}

// Results is the memoized post-election snapshot. Candidates keeps the
// enrollment order; sorting for presentation is the report layer's job.
type Results struct {
	TotalVoters uint64           `json:"total_voters"`
	VotesCast   uint64           `json:"votes_cast"`
	Candidates  []CandidateVotes `json:"candidates"`
}

// Service defines the ledger operations exposed to callers. The caller
// identity is explicit in every signature: the ledger consumes it from
// its environment and never derives it itself.
type Service interface {
	// Registration.
	Register(ctx context.Context, caller AccountID, name, surname, nationalID string) error
	EnableRegistration(ctx context.Context, caller AccountID) error
	DisableRegistration(ctx context.Context, caller AccountID) error
	NextPendingUser(ctx context.Context, caller AccountID) (User, error)
	ProcessNextPendingUser(ctx context.Context, caller AccountID, accept bool) (User, error)

	// Administration.
	TransferAdministrator(ctx context.Context, caller, newAdmin AccountID) error
	AssignReportGenerator(ctx context.Context, caller, generator AccountID) error

	// Elections.
	CreateElection(ctx context.Context, caller AccountID, start, end string) (uint64, error)
	StartVoting(ctx context.Context, caller AccountID, electionID uint64) error
	JoinElection(ctx context.Context, caller AccountID, electionID uint64, role Role) error
	NextPendingElectionUser(ctx context.Context, caller AccountID, electionID uint64) (Enrollment, error)
	ProcessElectionEnrollment(ctx context.Context, caller AccountID, electionID uint64, accept bool) (Enrollment, error)
	CastVote(ctx context.Context, caller AccountID, electionID uint64, candidateNumber uint32) error
	CandidateInfo(ctx context.Context, caller AccountID, electionID uint64, candidateNumber uint32) (User, error)

	// Reporting data source, gated to the assigned report generator.
	UserInfo(ctx context.Context, caller, userID AccountID) (User, error)
	ElectionVoters(ctx context.Context, caller AccountID, electionID uint64) ([]VoterEntry, error)
	ElectionCandidates(ctx context.Context, caller AccountID, electionID uint64) ([]CandidateTally, error)
	Results(ctx context.Context, caller AccountID, electionID uint64) (Results, error)
}
