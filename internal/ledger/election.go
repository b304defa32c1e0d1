package ledger

import "math"

// Election holds the full per-election state. Instances are owned by
// the Ledger's registry and are only touched while the Ledger's lock is
// held; identities are stored by value, never shared between elections.
type Election struct {
	ID         uint64           `json:"id"`
	Candidates []CandidateTally `json:"candidates"`
	Voters     []VoterEntry     `json:"voters"`
	Rejected   []AccountID      `json:"rejected"`
	Pending    []Enrollment     `json:"pending"`
	Started    bool             `json:"started"`
	StartsAt   uint64           `json:"starts_at"` // unix millis
	EndsAt     uint64           `json:"ends_at"`   // unix millis

	results *Results

	// maxCandidates caps the dense candidate counter; zero means the
	// full uint32 range. Tests lower it to exercise the overflow path.
	maxCandidates uint32
}

func (e *Election) candidateCap() uint64 {
	if e.maxCandidates == 0 {
		return math.MaxUint32
	}
	return uint64(e.maxCandidates)
}

// finished reports whether the voting window is over. The boundary is
// strict: at now == EndsAt the election still counts as running.
func (e *Election) finished(now uint64) bool {
	return now > e.EndsAt
}

func (e *Election) hasPending(id AccountID) bool {
	for _, p := range e.Pending {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (e *Election) hasRejected(id AccountID) bool {
	for _, r := range e.Rejected {
		if r == id {
			return true
		}
	}
	return false
}

func (e *Election) hasVoter(id AccountID) bool {
	for _, v := range e.Voters {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (e *Election) hasCandidate(id AccountID) bool {
	for _, c := range e.Candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// candidateExists checks a dense 1-indexed candidate number.
func (e *Election) candidateExists(number uint32) bool {
	return number >= 1 && uint64(number) <= uint64(len(e.Candidates))
}

func (e *Election) candidate(number uint32) *CandidateTally {
	if !e.candidateExists(number) {
		return nil
	}
	return &e.Candidates[number-1]
}

// processNextEnrollment pops the head of the pending queue and routes
// it. The candidate-number overflow check runs before the pop so a
// failed acceptance never consumes the queue entry.
func (e *Election) processNextEnrollment(accept bool) (Enrollment, error) {
	if len(e.Pending) == 0 {
		return Enrollment{}, ErrNoPendingUsers
	}

	head := e.Pending[0]
	if accept && head.Role == RoleCandidate && uint64(len(e.Candidates)) >= e.candidateCap() {
		return Enrollment{}, ErrCandidateIDOverflow
	}

	e.Pending = e.Pending[1:]
	if !accept {
		e.Rejected = append(e.Rejected, head.ID)
		return head, nil
	}

	switch head.Role {
	case RoleVoter:
		e.Voters = append(e.Voters, VoterEntry{ID: head.ID})
	case RoleCandidate:
		e.Candidates = append(e.Candidates, CandidateTally{
			ID:     head.ID,
			Number: uint32(len(e.Candidates)) + 1,
		})
	}
	return head, nil
}

// castVote flips the voter's flag and increments the tally as one unit:
// if the increment would overflow, the flag is rolled back and no part
// of the vote is recorded.
func (e *Election) castVote(voterID AccountID, candidateNumber uint32) error {
	candidate := e.candidate(candidateNumber)
	if candidate == nil {
		return ErrCandidateNotFound
	}

	var voter *VoterEntry
	for i := range e.Voters {
		if e.Voters[i].ID == voterID {
			voter = &e.Voters[i]
			break
		}
	}
	if voter == nil {
		return ErrNotAVoter
	}
	if voter.Voted {
		return ErrAlreadyVoted
	}

	voter.Voted = true
	if candidate.Votes == math.MaxUint32 {
		voter.Voted = false
		return ErrTallyOverflow
	}
	candidate.Votes++
	return nil
}

// resultsAt returns the memoized snapshot, computing it on first use
// once the election has finished. Candidates keep enrollment order.
func (e *Election) resultsAt(now uint64) (Results, error) {
	if !e.finished(now) {
		return Results{}, ErrNotYetFinished
	}
	if e.results == nil {
		res := Results{
			TotalVoters: uint64(len(e.Voters)),
			Candidates:  make([]CandidateVotes, 0, len(e.Candidates)),
		}
		for _, v := range e.Voters {
			if v.Voted {
				res.VotesCast++
			}
		}
		for _, c := range e.Candidates {
			res.Candidates = append(res.Candidates, CandidateVotes{ID: c.ID, Votes: uint64(c.Votes)})
		}
		e.results = &res
	}
	return e.results.copy(), nil
}

// copy returns a value snapshot so callers cannot alias the cache.
func (r *Results) copy() Results {
	out := *r
	out.Candidates = append([]CandidateVotes(nil), r.Candidates...)
	return out
}
