package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"sufragio.org/internal/audit"
	"sufragio.org/internal/ledger"
	"sufragio.org/internal/obs"
)

type registerRequest struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	NationalID string `json:"national_id"`
}

type decisionRequest struct {
	Accept bool `json:"accept"`
}

type transferAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

type assignGeneratorRequest struct {
	Generator string `json:"generator"`
}

type createElectionRequest struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type createElectionResponse struct {
	ID uint64 `json:"id"`
}

type enrollRequest struct {
	Role ledger.Role `json:"role"`
}

type castVoteRequest struct {
	CandidateNumber uint32 `json:"candidate_number"`
}

type admissionResponse struct {
	User     ledger.User `json:"user"`
	Accepted bool        `json:"accepted"`
}

type enrollmentResponse struct {
	Enrollment ledger.Enrollment `json:"enrollment"`
	Accepted   bool              `json:"accepted"`
}

// --- registration ---

func (a *API) handleRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Surname) == "" || strings.TrimSpace(req.NationalID) == "" {
		writeError(w, r, http.StatusBadRequest, "name, surname and national_id are required")
		return
	}

	if err := a.ledger.Register(r.Context(), caller, req.Name, req.Surname, req.NationalID); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountUserRegistered()
	a.audit(r.Context(), "registration.requested", map[string]any{
		"account": caller.Hex(),
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "pending"})
}

func (a *API) handleRegistrationEnable(w http.ResponseWriter, r *http.Request) {
	a.toggleRegistration(w, r, true)
}

func (a *API) handleRegistrationDisable(w http.ResponseWriter, r *http.Request) {
	a.toggleRegistration(w, r, false)
}

func (a *API) toggleRegistration(w http.ResponseWriter, r *http.Request, enable bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	var err error
	event := "registration.disabled"
	if enable {
		err = a.ledger.EnableRegistration(r.Context(), caller)
		event = "registration.enabled"
	} else {
		err = a.ledger.DisableRegistration(r.Context(), caller)
	}
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), event, nil)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": enable})
}

func (a *API) handleRegistrationQueue(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		u, err := a.ledger.NextPendingUser(r.Context(), caller)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPost:
		var req decisionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		u, err := a.ledger.ProcessNextPendingUser(r.Context(), caller, req.Accept)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		obs.CountAdmission(req.Accept)
		a.journalWrite("admission", func() error {
			return a.journal.AdmissionDecided(r.Context(), u.ID.Hex(), req.Accept)
		})
		a.audit(r.Context(), "registration.decided", map[string]any{
			"subject":  u.ID.Hex(),
			"accepted": req.Accept,
		})
		writeJSON(w, http.StatusOK, admissionResponse{User: u, Accepted: req.Accept})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID, err := ledger.ParseAccountID(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account address")
		return
	}

	u, err := a.ledger.UserInfo(r.Context(), caller, userID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- administration ---

func (a *API) handleAdminTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	var req transferAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newAdmin, err := ledger.ParseAccountID(strings.TrimSpace(req.NewAdmin))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "new_admin is not a valid account")
		return
	}

	if err := a.ledger.TransferAdministrator(r.Context(), caller, newAdmin); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.transferred", map[string]any{
		"new_admin": newAdmin.Hex(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"administrator": newAdmin.Hex()})
}

func (a *API) handleAssignGenerator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	var req assignGeneratorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	generator, err := ledger.ParseAccountID(strings.TrimSpace(req.Generator))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "generator is not a valid account")
		return
	}

	if err := a.ledger.AssignReportGenerator(r.Context(), caller, generator); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.generator_assigned", map[string]any{
		"generator": generator.Hex(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"report_generator": generator.Hex()})
}

// --- elections ---

func (a *API) handleElections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	var req createElectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := a.ledger.CreateElection(r.Context(), caller, req.StartsAt, req.EndsAt)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountElectionCreated()
	a.journalWrite("election", func() error {
		return a.journal.ElectionCreated(r.Context(), id, req.StartsAt, req.EndsAt)
	})
	a.audit(r.Context(), "election.created", map[string]any{
		"election_id": id,
		"starts_at":   req.StartsAt,
		"ends_at":     req.EndsAt,
	})

	w.Header().Set("Location", "/v1/elections/"+strconv.FormatUint(id, 10))
	writeJSON(w, http.StatusCreated, createElectionResponse{ID: id})
}

// handleElectionResource routes /v1/elections/{id}/... to the matching
// operation.
func (a *API) handleElectionResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/elections/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	electionID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || electionID == 0 {
		writeError(w, r, http.StatusNotFound, "election not found")
		return
	}

	caller, ok := callerAccount(w, r)
	if !ok {
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "start":
		a.startVoting(w, r, caller, electionID)
	case len(parts) == 2 && parts[1] == "enroll":
		a.enroll(w, r, caller, electionID)
	case len(parts) == 3 && parts[1] == "enrollment" && parts[2] == "next":
		a.enrollmentQueue(w, r, caller, electionID)
	case len(parts) == 2 && parts[1] == "votes":
		a.castVote(w, r, caller, electionID)
	case len(parts) == 2 && parts[1] == "voters":
		a.electionVoters(w, r, caller, electionID)
	case len(parts) == 2 && parts[1] == "candidates":
		a.electionCandidates(w, r, caller, electionID)
	case len(parts) == 3 && parts[1] == "candidates":
		a.candidateInfo(w, r, caller, electionID, parts[2])
	case len(parts) == 2 && parts[1] == "results":
		a.electionResults(w, r, caller, electionID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) startVoting(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.ledger.StartVoting(r.Context(), caller, electionID); err != nil {
		handleLedgerError(w, r, err)
		return
	}
	a.audit(r.Context(), "election.voting_started", map[string]any{
		"election_id": electionID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"started": true})
}

func (a *API) enroll(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.ledger.JoinElection(r.Context(), caller, electionID, req.Role); err != nil {
		handleLedgerError(w, r, err)
		return
	}
	a.audit(r.Context(), "election.enroll_requested", map[string]any{
		"election_id": electionID,
		"role":        req.Role.String(),
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "pending"})
}

func (a *API) enrollmentQueue(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	switch r.Method {
	case http.MethodGet:
		e, err := a.ledger.NextPendingElectionUser(r.Context(), caller, electionID)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodPost:
		var req decisionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		e, err := a.ledger.ProcessElectionEnrollment(r.Context(), caller, electionID, req.Accept)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		a.journalWrite("enrollment", func() error {
			return a.journal.EnrollmentDecided(r.Context(), electionID, e.ID.Hex(), e.Role.String(), req.Accept)
		})
		a.audit(r.Context(), "election.enrollment_decided", map[string]any{
			"election_id": electionID,
			"subject":     e.ID.Hex(),
			"role":        e.Role.String(),
			"accepted":    req.Accept,
		})
		writeJSON(w, http.StatusOK, enrollmentResponse{Enrollment: e, Accepted: req.Accept})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req castVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CandidateNumber == 0 {
		writeError(w, r, http.StatusBadRequest, "candidate_number is required")
		return
	}

	if err := a.ledger.CastVote(r.Context(), caller, electionID, req.CandidateNumber); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountVoteCast()
	if a.stream != nil {
		a.stream.PublishBallot(electionID, req.CandidateNumber)
	}
	a.journalWrite("ballot", func() error {
		return a.journal.BallotCast(r.Context(), electionID, req.CandidateNumber)
	})
	// The audit trail stays anonymous: no voter-to-candidate link.
	a.audit(r.Context(), "election.ballot_cast", map[string]any{
		"election_id": electionID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"status": "counted"})
}

func (a *API) electionVoters(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	voters, err := a.ledger.ElectionVoters(r.Context(), caller, electionID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": voters})
}

func (a *API) electionCandidates(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	candidates, err := a.ledger.ElectionCandidates(r.Context(), caller, electionID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": candidates})
}

func (a *API) candidateInfo(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64, rawNumber string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	number, err := strconv.ParseUint(rawNumber, 10, 32)
	if err != nil || number == 0 {
		writeError(w, r, http.StatusNotFound, "candidate not found")
		return
	}
	u, err := a.ledger.CandidateInfo(r.Context(), caller, electionID, uint32(number))
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) electionResults(w http.ResponseWriter, r *http.Request, caller ledger.AccountID, electionID uint64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	res, err := a.ledger.Results(r.Context(), caller, electionID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidRole),
		errors.Is(err, ledger.ErrBadStartDate),
		errors.Is(err, ledger.ErrBadEndDate):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotAdministrator),
		errors.Is(err, ledger.ErrNotReportGenerator),
		errors.Is(err, ledger.ErrCallerIsAdministrator),
		errors.Is(err, ledger.ErrNotRegistered),
		errors.Is(err, ledger.ErrNotAVoter):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrElectionNotFound),
		errors.Is(err, ledger.ErrCandidateNotFound),
		errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrNoPendingUsers):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrRegistrationClosed),
		errors.Is(err, ledger.ErrRegistrationAlreadyEnabled),
		errors.Is(err, ledger.ErrRegistrationAlreadyDisabled),
		errors.Is(err, ledger.ErrAlreadyRegistered),
		errors.Is(err, ledger.ErrAlreadyPending),
		errors.Is(err, ledger.ErrAlreadyRejected),
		errors.Is(err, ledger.ErrAlreadyEnrolled),
		errors.Is(err, ledger.ErrPreviouslyRejected),
		errors.Is(err, ledger.ErrVotingAlreadyStarted),
		errors.Is(err, ledger.ErrElectionEnded),
		errors.Is(err, ledger.ErrTooEarly),
		errors.Is(err, ledger.ErrVotingEnded),
		errors.Is(err, ledger.ErrAlreadyVoted),
		errors.Is(err, ledger.ErrNotYetFinished),
		errors.Is(err, ledger.ErrElectionIDOverflow),
		errors.Is(err, ledger.ErrCandidateIDOverflow),
		errors.Is(err, ledger.ErrTallyOverflow):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
