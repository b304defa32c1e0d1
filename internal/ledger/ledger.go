package ledger

import (
	"context"
	"math"
	"sync"
	"time"
)

// DateLayout is the accepted form for election start/end inputs,
// dd-mm-YYYY hh:mm. Values are read as naive UTC: callers targeting
// another timezone pre-adjust the hour themselves.
const DateLayout = "02-01-2006 15:04"

// Ledger is the single owner of all election state: the user directory,
// the election registry and the enrollment/voting engine. Every public
// operation observes and commits state atomically under one lock; there
// is no partial mutation visible after an error return.
//
// - implements Service
type Ledger struct {
	mu sync.RWMutex

	administrator   AccountID
	reportGenerator *AccountID
	registrationOn  bool

	users        []User
	pendingUsers []User
	rejected     []AccountID

	elections []Election

	now func() time.Time
}

var _ Service = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. The ledger only ever reads it as
// milliseconds since epoch.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty ledger whose administrator is the deploying
// identity.
func New(administrator AccountID, opts ...Option) *Ledger {
	l := &Ledger{
		administrator: administrator,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) nowMillis() uint64 {
	return uint64(l.now().UnixMilli())
}

// Guards ------------------------------------------------------------------

func (l *Ledger) isAdministrator(caller AccountID) bool {
	return caller == l.administrator
}

func (l *Ledger) isReportGenerator(caller AccountID) bool {
	return l.reportGenerator != nil && caller == *l.reportGenerator
}

func (l *Ledger) isRegisteredUser(caller AccountID) bool {
	for _, u := range l.users {
		if u.ID == caller {
			return true
		}
	}
	return false
}

func (l *Ledger) isPendingUser(caller AccountID) bool {
	for _, u := range l.pendingUsers {
		if u.ID == caller {
			return true
		}
	}
	return false
}

func (l *Ledger) isRejected(caller AccountID) bool {
	for _, id := range l.rejected {
		if id == caller {
			return true
		}
	}
	return false
}

func (l *Ledger) user(id AccountID) *User {
	for i := range l.users {
		if l.users[i].ID == id {
			return &l.users[i]
		}
	}
	return nil
}

// election resolves a dense 1-indexed id, guarding the id-1 conversion.
func (l *Ledger) election(id uint64) *Election {
	if id < 1 || id > uint64(len(l.elections)) {
		return nil
	}
	return &l.elections[id-1]
}

// User directory ----------------------------------------------------------

// Register files a self-registration into the pending queue. An identity
// lives in at most one of pending, accepted, rejected or the
// administrator slot.
func (l *Ledger) Register(ctx context.Context, caller AccountID, name, surname, nationalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.registrationOn {
		return ErrRegistrationClosed
	}
	if l.isAdministrator(caller) {
		return ErrCallerIsAdministrator
	}
	if l.isRejected(caller) {
		return ErrAlreadyRejected
	}
	if l.isRegisteredUser(caller) {
		return ErrAlreadyRegistered
	}
	if l.isPendingUser(caller) {
		return ErrAlreadyPending
	}

	l.pendingUsers = append(l.pendingUsers, User{
		ID:         caller,
		Name:       name,
		Surname:    surname,
		NationalID: nationalID,
	})
	return nil
}

// EnableRegistration opens self-registration. Enabling twice is an
// error, not a no-op: the toggle is a deliberate two-state contract.
func (l *Ledger) EnableRegistration(ctx context.Context, caller AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return ErrNotAdministrator
	}
	if l.registrationOn {
		return ErrRegistrationAlreadyEnabled
	}
	l.registrationOn = true
	return nil
}

// DisableRegistration closes self-registration, failing if already off.
func (l *Ledger) DisableRegistration(ctx context.Context, caller AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return ErrNotAdministrator
	}
	if !l.registrationOn {
		return ErrRegistrationAlreadyDisabled
	}
	l.registrationOn = false
	return nil
}

// NextPendingUser peeks at the head of the admission queue.
func (l *Ledger) NextPendingUser(ctx context.Context, caller AccountID) (User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.isAdministrator(caller) {
		return User{}, ErrNotAdministrator
	}
	if len(l.pendingUsers) == 0 {
		return User{}, ErrNoPendingUsers
	}
	return l.pendingUsers[0], nil
}

// ProcessNextPendingUser decides the oldest pending registration, strict
// FIFO, one per call. A rejection keeps only the identity; the record is
// discarded and the identity can never re-apply.
func (l *Ledger) ProcessNextPendingUser(ctx context.Context, caller AccountID, accept bool) (User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return User{}, ErrNotAdministrator
	}
	if len(l.pendingUsers) == 0 {
		return User{}, ErrNoPendingUsers
	}

	head := l.pendingUsers[0]
	l.pendingUsers = l.pendingUsers[1:]
	if accept {
		l.users = append(l.users, head)
	} else {
		l.rejected = append(l.rejected, head.ID)
	}
	return head, nil
}

// Administration ----------------------------------------------------------

// TransferAdministrator hands the role over in a single step; the new
// administrator does not acknowledge.
func (l *Ledger) TransferAdministrator(ctx context.Context, caller, newAdmin AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return ErrNotAdministrator
	}
	l.administrator = newAdmin
	return nil
}

// AssignReportGenerator designates the identity allowed to pull
// reporting data. Reassignment overwrites the previous holder.
func (l *Ledger) AssignReportGenerator(ctx context.Context, caller, generator AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return ErrNotAdministrator
	}
	g := generator
	l.reportGenerator = &g
	return nil
}

// Election registry -------------------------------------------------------

// CreateElection validates the two date inputs, converts them to unix
// millis and appends a fresh election. Ids are dense and 1-indexed;
// creation fails rather than wrapping the counter.
func (l *Ledger) CreateElection(ctx context.Context, caller AccountID, start, end string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return 0, ErrNotAdministrator
	}

	startAt, err := time.Parse(DateLayout, start)
	if err != nil {
		return 0, ErrBadStartDate
	}
	endAt, err := time.Parse(DateLayout, end)
	if err != nil {
		return 0, ErrBadEndDate
	}

	if uint64(len(l.elections)) == math.MaxUint64 {
		return 0, ErrElectionIDOverflow
	}
	id := uint64(len(l.elections)) + 1

	l.elections = append(l.elections, Election{
		ID:       id,
		StartsAt: uint64(startAt.UnixMilli()),
		EndsAt:   uint64(endAt.UnixMilli()),
	})
	return id, nil
}

// Enrollment & voting engine ----------------------------------------------

// JoinElection queues a registered user for admission into an election
// in the requested role. Enrollment closes the moment voting starts (by
// flag or by clock).
func (l *Ledger) JoinElection(ctx context.Context, caller AccountID, electionID uint64, role Role) error {
	switch role {
	case RoleVoter, RoleCandidate:
	default:
		return ErrInvalidRole
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isRegisteredUser(caller) {
		return ErrNotRegistered
	}
	e := l.election(electionID)
	if e == nil {
		return ErrElectionNotFound
	}
	if e.hasPending(caller) || e.hasVoter(caller) || e.hasCandidate(caller) {
		return ErrAlreadyEnrolled
	}
	now := l.nowMillis()
	if e.Started || now >= e.StartsAt {
		return ErrVotingAlreadyStarted
	}
	if now >= e.EndsAt {
		return ErrElectionEnded
	}
	if e.hasRejected(caller) {
		return ErrPreviouslyRejected
	}

	e.Pending = append(e.Pending, Enrollment{ID: caller, Role: role})
	return nil
}

// NextPendingElectionUser peeks at the head of an election's enrollment
// queue.
func (l *Ledger) NextPendingElectionUser(ctx context.Context, caller AccountID, electionID uint64) (Enrollment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.isAdministrator(caller) {
		return Enrollment{}, ErrNotAdministrator
	}
	e := l.election(electionID)
	if e == nil {
		return Enrollment{}, ErrElectionNotFound
	}
	if len(e.Pending) == 0 {
		return Enrollment{}, ErrNoPendingUsers
	}
	return e.Pending[0], nil
}

// ProcessElectionEnrollment decides the oldest enrollment request for an
// election, same FIFO discipline as the directory queue.
func (l *Ledger) ProcessElectionEnrollment(ctx context.Context, caller AccountID, electionID uint64, accept bool) (Enrollment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return Enrollment{}, ErrNotAdministrator
	}
	e := l.election(electionID)
	if e == nil {
		return Enrollment{}, ErrElectionNotFound
	}
	return e.processNextEnrollment(accept)
}

// StartVoting flips an election into its voting phase ahead of the
// first ballot. It is optional: CastVote performs the same transition
// lazily once the start time has passed.
func (l *Ledger) StartVoting(ctx context.Context, caller AccountID, electionID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isAdministrator(caller) {
		return ErrNotAdministrator
	}
	e := l.election(electionID)
	if e == nil {
		return ErrElectionNotFound
	}
	now := l.nowMillis()
	if now > e.EndsAt {
		return ErrVotingEnded
	}
	if e.Started {
		return ErrVotingAlreadyStarted
	}
	if now < e.StartsAt {
		return ErrTooEarly
	}
	e.Started = true
	return nil
}

// CastVote records one ballot for the caller. The whole operation is
// atomic: an overflow on the tally leaves the voter flag unset.
func (l *Ledger) CastVote(ctx context.Context, caller AccountID, electionID uint64, candidateNumber uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isRegisteredUser(caller) {
		return ErrNotRegistered
	}
	e := l.election(electionID)
	if e == nil {
		return ErrElectionNotFound
	}
	now := l.nowMillis()
	if !e.Started {
		if now < e.StartsAt {
			return ErrTooEarly
		}
		e.Started = true
	}
	if now > e.EndsAt {
		return ErrVotingEnded
	}
	return e.castVote(caller, candidateNumber)
}

// CandidateInfo joins a candidate number to the directory record behind
// it. An admitted candidate is always a registered user, so a missing
// join indicates a defect, not a domain error.
func (l *Ledger) CandidateInfo(ctx context.Context, caller AccountID, electionID uint64, candidateNumber uint32) (User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e := l.election(electionID)
	if e == nil {
		return User{}, ErrElectionNotFound
	}
	c := e.candidate(candidateNumber)
	if c == nil {
		return User{}, ErrCandidateNotFound
	}
	u := l.user(c.ID)
	if u == nil {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// Reporting data source ---------------------------------------------------

// UserInfo exposes a directory record to the report generator.
func (l *Ledger) UserInfo(ctx context.Context, caller, userID AccountID) (User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.isReportGenerator(caller) {
		return User{}, ErrNotReportGenerator
	}
	u := l.user(userID)
	if u == nil {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// ElectionVoters returns the voter roll of an election. The roll is
// readable while the election is still running; only the derived
// tallies and results wait for the end time.
func (l *Ledger) ElectionVoters(ctx context.Context, caller AccountID, electionID uint64) ([]VoterEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.isReportGenerator(caller) {
		return nil, ErrNotReportGenerator
	}
	e := l.election(electionID)
	if e == nil {
		return nil, ErrElectionNotFound
	}
	return append([]VoterEntry(nil), e.Voters...), nil
}

// ElectionCandidates returns the tallies of a finished election.
func (l *Ledger) ElectionCandidates(ctx context.Context, caller AccountID, electionID uint64) ([]CandidateTally, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.isReportGenerator(caller) {
		return nil, ErrNotReportGenerator
	}
	e := l.election(electionID)
	if e == nil {
		return nil, ErrElectionNotFound
	}
	if !e.finished(l.nowMillis()) {
		return nil, ErrNotYetFinished
	}
	return append([]CandidateTally(nil), e.Candidates...), nil
}

// Results returns the memoized post-election snapshot, computing it the
// first time an election is read after its end time has passed.
func (l *Ledger) Results(ctx context.Context, caller AccountID, electionID uint64) (Results, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.election(electionID)
	if e == nil {
		return Results{}, ErrElectionNotFound
	}
	return e.resultsAt(l.nowMillis())
}
