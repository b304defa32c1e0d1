package ledger

import "errors"

// Every expected failure is a distinct sentinel so callers (and tests)
// can branch on errors.Is without matching message text.
var (
	// Authorization.
	ErrNotAdministrator   = errors.New("caller is not the administrator")
	ErrNotReportGenerator = errors.New("caller is not the report generator")
	ErrNotRegistered      = errors.New("caller is not a registered user")

	// Registration and directory state.
	ErrRegistrationClosed          = errors.New("registration is not enabled")
	ErrRegistrationAlreadyEnabled  = errors.New("registration is already enabled")
	ErrRegistrationAlreadyDisabled = errors.New("registration is already disabled")
	ErrCallerIsAdministrator       = errors.New("the administrator cannot register as a user")
	ErrAlreadyRejected             = errors.New("registration request was already rejected")
	ErrAlreadyRegistered           = errors.New("already registered as a user")
	ErrAlreadyPending              = errors.New("already waiting in the pending queue")
	ErrNoPendingUsers              = errors.New("no pending users")

	// Elections and enrollment.
	ErrElectionNotFound     = errors.New("no election with that id")
	ErrAlreadyEnrolled      = errors.New("already enrolled in this election")
	ErrVotingAlreadyStarted = errors.New("voting already started in this election")
	ErrElectionEnded        = errors.New("this election already ended")
	ErrPreviouslyRejected   = errors.New("enrollment was previously rejected in this election")

	// Voting.
	ErrTooEarly          = errors.New("voting has not started yet")
	ErrVotingEnded       = errors.New("voting already ended")
	ErrCandidateNotFound = errors.New("no candidate with that number")
	ErrNotAVoter         = errors.New("not admitted as a voter in this election")
	ErrAlreadyVoted      = errors.New("vote was already cast")

	// Results.
	ErrNotYetFinished = errors.New("the election has not finished yet")

	// Overflow, reported instead of wrapping.
	ErrElectionIDOverflow  = errors.New("election id counter overflow")
	ErrCandidateIDOverflow = errors.New("candidate number counter overflow")
	ErrTallyOverflow       = errors.New("vote tally overflow")

	// Lookups.
	ErrUserNotFound = errors.New("user not found")

	// Date parsing, one per field so callers know which input failed.
	ErrBadStartDate = errors.New("bad start date, expected format dd-mm-YYYY hh:mm")
	ErrBadEndDate   = errors.New("bad end date, expected format dd-mm-YYYY hh:mm")
)
