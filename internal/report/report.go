// Package report derives read-only election statistics by cross-calling
// the ledger's reporting accessors. It owns no election state: only a
// capability reference to the data source and the identity it calls
// with.
package report

import (
	"context"
	"sort"

	"sufragio.org/internal/ledger"
)

// DataSource is the slice of the ledger surface the generator needs.
// Calls are synchronous; any failure is forwarded to the caller
// unchanged.
type DataSource interface {
	UserInfo(ctx context.Context, caller, userID ledger.AccountID) (ledger.User, error)
	ElectionVoters(ctx context.Context, caller ledger.AccountID, electionID uint64) ([]ledger.VoterEntry, error)
	ElectionCandidates(ctx context.Context, caller ledger.AccountID, electionID uint64) ([]ledger.CandidateTally, error)
	Results(ctx context.Context, caller ledger.AccountID, electionID uint64) (ledger.Results, error)
}

// Generator produces the three report shapes. The self identity must be
// the ledger's assigned report generator for the gated accessors to
// answer.
type Generator struct {
	src  DataSource
	self ledger.AccountID
}

// NewGenerator wires a generator to its data source.
func NewGenerator(src DataSource, self ledger.AccountID) *Generator {
	return &Generator{src: src, self: self}
}

// VoterRecord is one voter-roll row: the ledger entry joined with the
// directory record behind it.
type VoterRecord struct {
	ID         ledger.AccountID `json:"id"`
	Name       string           `json:"name"`
	Surname    string           `json:"surname"`
	NationalID string           `json:"national_id"`
	Voted      bool             `json:"voted"`
}

// Participation summarises turnout for a finished election. Percent
// uses ceiling integer division; an election with no voters reports
// zero.
type Participation struct {
	TotalVoters uint64 `json:"total_voters"`
	VotesCast   uint64 `json:"votes_cast"`
	Percent     uint64 `json:"percent"`
}

// CandidateResult is one ranked-results row.
type CandidateResult struct {
	ID         ledger.AccountID `json:"id"`
	Name       string           `json:"name"`
	Surname    string           `json:"surname"`
	NationalID string           `json:"national_id"`
	Votes      uint64           `json:"votes"`
}

// ElectionResult ranks candidates by descending votes. Winner is nil
// when the top two are tied (or there are no candidates): a draw has no
// arbitrary winner.
type ElectionResult struct {
	Winner  *CandidateResult  `json:"winner,omitempty"`
	Ranking []CandidateResult `json:"ranking"`
}

// VoterRoll reports the registered-and-admitted voters of an election
// in the ledger's original order.
func (g *Generator) VoterRoll(ctx context.Context, electionID uint64) ([]VoterRecord, error) {
	voters, err := g.src.ElectionVoters(ctx, g.self, electionID)
	if err != nil {
		return nil, err
	}

	roll := make([]VoterRecord, 0, len(voters))
	for _, v := range voters {
		u, err := g.src.UserInfo(ctx, g.self, v.ID)
		if err != nil {
			return nil, err
		}
		roll = append(roll, VoterRecord{
			ID:         v.ID,
			Name:       u.Name,
			Surname:    u.Surname,
			NationalID: u.NationalID,
			Voted:      v.Voted,
		})
	}
	return roll, nil
}

// Turnout reports how many admitted voters actually voted. It reads
// the post-election snapshot, so it is only available once the
// election has finished.
func (g *Generator) Turnout(ctx context.Context, electionID uint64) (Participation, error) {
	res, err := g.src.Results(ctx, g.self, electionID)
	if err != nil {
		return Participation{}, err
	}

	p := Participation{TotalVoters: res.TotalVoters, VotesCast: res.VotesCast}
	if p.TotalVoters > 0 {
		// Ceiling division so any participation at all rounds up.
		p.Percent = (p.VotesCast*100 + p.TotalVoters - 1) / p.TotalVoters
	}
	return p, nil
}

// Ranked reports the candidates ordered by descending votes. The sort
// is stable: equal tallies keep their enrollment order.
func (g *Generator) Ranked(ctx context.Context, electionID uint64) (ElectionResult, error) {
	tallies, err := g.src.ElectionCandidates(ctx, g.self, electionID)
	if err != nil {
		return ElectionResult{}, err
	}

	ranking := make([]CandidateResult, 0, len(tallies))
	for _, c := range tallies {
		u, err := g.src.UserInfo(ctx, g.self, c.ID)
		if err != nil {
			return ElectionResult{}, err
		}
		ranking = append(ranking, CandidateResult{
			ID:         c.ID,
			Name:       u.Name,
			Surname:    u.Surname,
			NationalID: u.NationalID,
			Votes:      uint64(c.Votes),
		})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Votes > ranking[j].Votes
	})

	out := ElectionResult{Ranking: ranking}
	if len(ranking) == 1 || (len(ranking) > 1 && ranking[0].Votes > ranking[1].Votes) {
		winner := ranking[0]
		out.Winner = &winner
	}
	return out, nil
}
