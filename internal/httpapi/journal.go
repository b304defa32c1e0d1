package httpapi

import (
	"context"

	"sufragio.org/internal/obs"
)

// Journal persists an append-only trail of ledger decisions. The HTTP
// layer treats it as best-effort: a journal failure is logged but never
// fails the request, the ledger remains the source of truth.
type Journal interface {
	ElectionCreated(ctx context.Context, electionID uint64, startsAt, endsAt string) error
	AdmissionDecided(ctx context.Context, account string, accepted bool) error
	EnrollmentDecided(ctx context.Context, electionID uint64, account, role string, accepted bool) error
	BallotCast(ctx context.Context, electionID uint64, candidateNumber uint32) error
}

func (a *API) journalWrite(op string, fn func() error) {
	if a.journal == nil {
		return
	}
	if err := fn(); err != nil {
		obs.LogEvent("error", "journal write failed", map[string]any{
			"op":    op,
			"error": err.Error(),
		})
	}
}
