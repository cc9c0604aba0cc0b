package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

const (
	maxBodyBytes = 16 << 10
	maxLimit     = 100
)

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := leaderboard.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			s.errorHandler.HandleValidationError(w, r, ErrTypeValidation, "limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	entries, err := s.store.Top(r.Context(), limit)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, LeaderboardResponse{Success: true, Leaderboard: entries})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.WalletAddress == "" || isNull(req.Score) {
		s.errorHandler.HandleValidationError(w, r, ErrTypeValidation, "wallet_address", "wallet_address and score are required")
		return
	}
	addr, err := leaderboard.NormalizeAddress(req.WalletAddress)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidAddress, "wallet_address", "Invalid wallet address format")
		return
	}
	score, ok := parseScore(req.Score)
	if !ok {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidScore, "score", "Score must be a non-negative integer")
		return
	}

	res, err := s.store.SubmitScore(r.Context(), addr, score)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.audit.LogAuditEvent(middleware.GetReqID(r.Context()), "score_submitted", "leaderboard", outcome(res), map[string]interface{}{
		"address": addr,
		"score":   score,
		"best":    res.Best,
	})

	resp := SubmitResponse{
		Success:        true,
		NewPlayer:      res.NewPlayer,
		NewBest:        res.NewBest,
		Score:          res.Best,
		CurrentBest:    res.Best,
		SubmittedScore: res.Submitted,
	}
	status := http.StatusOK
	switch {
	case res.NewPlayer:
		resp.Message = "New player added to leaderboard"
		status = http.StatusCreated
	case res.NewBest:
		resp.Message = "Score updated successfully"
	default:
		resp.Message = "Score submitted but not a new best"
	}
	s.writeJSON(w, status, resp)
}

func outcome(res leaderboard.SubmitResult) string {
	switch {
	case res.NewPlayer:
		return "new_player"
	case res.NewBest:
		return "new_best"
	}
	return "not_best"
}

func (s *Server) handleNFTMinted(w http.ResponseWriter, r *http.Request) {
	var req MintedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.WalletAddress == "" {
		s.errorHandler.HandleValidationError(w, r, ErrTypeValidation, "wallet_address", "wallet_address is required")
		return
	}
	addr, err := leaderboard.NormalizeAddress(req.WalletAddress)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidAddress, "wallet_address", "Invalid wallet address format")
		return
	}

	err = s.store.MarkNFTMinted(r.Context(), addr)
	if errors.Is(err, leaderboard.ErrNotFound) {
		s.errorHandler.HandleNotFound(w, r, "Player not found in leaderboard")
		return
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.audit.LogAuditEvent(middleware.GetReqID(r.Context()), "nft_minted", "leaderboard", "success", map[string]interface{}{
		"address": addr,
	})
	s.writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "NFT minting status updated"})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	addr, err := leaderboard.NormalizeAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidAddress, "address", "Invalid wallet address format")
		return
	}

	stats, err := s.store.Player(r.Context(), addr)
	if errors.Is(err, leaderboard.ErrNotFound) {
		s.errorHandler.HandleNotFound(w, r, "Player not found")
		return
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, PlayerResponse{
		Success: true,
		Player: PlayerView{
			PlayerStats: stats,
			Badge:       leaderboard.Badge(stats.Rank, stats.Score),
		},
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, SummaryResponse{Success: true, Summary: sum})
}

// decodeBody reads a JSON body into dst, answering 400 itself on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeValidation, "body", "No data provided")
		return false
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// parseScore accepts only a bare non-negative JSON integer.
func parseScore(raw json.RawMessage) (int, bool) {
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil || leaderboard.ValidScore(n) != nil {
		return 0, false
	}
	return n, true
}
