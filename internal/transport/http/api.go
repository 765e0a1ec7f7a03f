package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"triviacast-service/internal/app"
	"triviacast-service/internal/domain"

	"go.uber.org/zap"
)

// API holds the REST handlers.
type API struct {
	svc Services
	log *zap.Logger
}

func queryFrom(r *http.Request) domain.QuestionQuery {
	q := r.URL.Query()
	amount, _ := strconv.Atoi(q.Get("amount"))
	return domain.QuestionQuery{
		Amount:     amount,
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Type:       q.Get("type"),
	}
}

type questionsResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []domain.Question `json:"results"`
}

// questions proxies the question sources in the OpenTDB response shape.
func (a *API) questions(w http.ResponseWriter, r *http.Request) {
	query := queryFrom(r).Normalize()
	if err := app.ValidateQuery(query); err != nil {
		writeError(w, a.log, err)
		return
	}
	questions, err := a.svc.Questions.FetchQuestions(r.Context(), query)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{ResponseCode: 0, Results: questions})
}

type startRequest struct {
	Address    string `json:"address"`
	Amount     int    `json:"amount"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Type       string `json:"type"`
}

func (a *API) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, a.log, err)
			return
		}
	}
	fid, _ := FIDFromContext(r.Context())
	view, err := a.svc.Quiz.Start(r.Context(), app.StartRequest{
		Address: req.Address,
		FID:     fid,
		Query: domain.QuestionQuery{
			Amount:     req.Amount,
			Category:   req.Category,
			Difficulty: req.Difficulty,
			Type:       req.Type,
		},
	})
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.Quiz.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	result, err := a.svc.Quiz.Answer(r.Context(), r.PathValue("id"), req.Answer)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) finish(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Quiz.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	lb, err := a.svc.Leaderboard.Get(r.Context(), limit)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type pointsResponse struct {
	Address string `json:"address"`
	TPoints int64  `json:"tPoints"`
}

func (a *API) points(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	points, err := a.svc.Leaderboard.Points(r.Context(), address)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{Address: address, TPoints: points})
}

type spinRequest struct {
	Address string `json:"address"`
}

func (a *API) spin(w http.ResponseWriter, r *http.Request) {
	var req spinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	if err := a.requireOwner(r, req.Address); err != nil {
		writeError(w, a.log, err)
		return
	}
	entry, err := a.svc.Jackpot.Spin(r.Context(), req.Address)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	if fid, ok := FIDFromContext(r.Context()); ok {
		a.log.Debug("spin by fid", zap.Int64("fid", fid), zap.String("address", entry.Address))
	}
	writeJSON(w, http.StatusOK, entry)
}

// requireOwner checks that the authenticated FID has verified the address.
// Without Quick Auth or a profile source there is nothing to check against.
func (a *API) requireOwner(r *http.Request, address string) error {
	fid, ok := FIDFromContext(r.Context())
	if !ok || a.svc.Profiles == nil {
		return nil
	}
	addr, err := app.NormalizeAddress(address)
	if err != nil {
		return err
	}
	users, err := a.svc.Profiles.UsersByAddress(r.Context(), []string{addr})
	if err != nil {
		return err
	}
	if u, ok := users[strings.ToLower(addr)]; ok && u.FID == fid {
		return nil
	}
	return domain.ErrAddressNotOwned
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.svc.Jackpot.History(r.Context(), r.URL.Query().Get("address"), limit)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type claimRequest struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	TxHash  string `json:"txHash"`
}

func (a *API) claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	if err := a.requireOwner(r, req.Address); err != nil {
		writeError(w, a.log, err)
		return
	}
	claim, err := a.svc.Jackpot.Claim(r.Context(), req.Address, req.Nonce)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	if req.TxHash == "" {
		writeError(w, a.log, errBadRequest)
		return
	}
	if err := a.requireOwner(r, req.Address); err != nil {
		writeError(w, a.log, err)
		return
	}
	entry, err := a.svc.Jackpot.Confirm(r.Context(), req.Address, req.Nonce, req.TxHash)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) farcasterUsers(w http.ResponseWriter, r *http.Request) {
	var addresses []string
	for _, part := range strings.Split(r.URL.Query().Get("addresses"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			addresses = append(addresses, part)
		}
	}
	if len(addresses) == 0 {
		writeError(w, a.log, domain.ErrInvalidAddress)
		return
	}
	users := map[string]domain.FarcasterUser{}
	if a.svc.Profiles != nil {
		var err error
		users, err = a.svc.Profiles.UsersByAddress(r.Context(), addresses)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, a.log, errBadRequest)
		return
	}
	event, err := a.svc.Webhook.Handle(r.Context(), body)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event.Event})
}
