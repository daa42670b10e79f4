package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/shrubbery/internal/api/request"
	"github.com/mcoot/shrubbery/internal/api/response"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/services/shrub"
)

// DefaultLeaderboardLimit is used when GET /shrubs/leaderboard has no limit
const DefaultLeaderboardLimit = 10

// ShrubHandler handles shrub and vote endpoints
type ShrubHandler struct {
	shrubs *shrub.Service
}

// NewShrubHandler creates a new shrub handler
func NewShrubHandler(shrubs *shrub.Service) *ShrubHandler {
	return &ShrubHandler{
		shrubs: shrubs,
	}
}

// Create handles POST /api/v1/shrubs
func (h *ShrubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateShrubRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.shrubs.Create(r.Context(), shrub.CreateInput{
		ShrubberID:      model.PlayerID(req.ShrubberID),
		CreatedByID:     model.PlayerID(req.CreatedByID),
		OriginalWord:    req.OriginalWord,
		TransformedWord: req.TransformedWord,
		Description:     req.Description,
		Points:          req.Points,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.ShrubFromDetail(d))
}

// List handles GET /api/v1/shrubs
func (h *ShrubHandler) List(w http.ResponseWriter, r *http.Request) {
	details, err := h.shrubs.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ShrubsFromDetails(details))
}

// Get handles GET /api/v1/shrubs/{id}
func (h *ShrubHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	d, err := h.shrubs.Get(r.Context(), model.ShrubID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ShrubFromDetail(d))
}

// ListByPlayer handles GET /api/v1/shrubs/player/{shrubber}
func (h *ShrubHandler) ListByPlayer(w http.ResponseWriter, r *http.Request) {
	shrubber := mux.Vars(r)["shrubber"]

	details, err := h.shrubs.ListByPlayer(r.Context(), model.PlayerID(shrubber))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ShrubsFromDetails(details))
}

// Leaderboard handles GET /api/v1/shrubs/leaderboard?limit=N
func (h *ShrubHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	standings, err := h.shrubs.Leaderboard(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ShrubLeaderboard(standings))
}

// Vote handles POST /api/v1/shrubs/vote
func (h *ShrubHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req request.VoteRequest
	if !decode(w, r, &req) {
		return
	}

	v, err := h.shrubs.Vote(r.Context(), model.ShrubID(req.ShrubID), model.PlayerID(req.VoterID), req.Points)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.Created(w, response.VoteFromModel(v))
}

// RemoveVote handles DELETE /api/v1/shrubs/vote
func (h *ShrubHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	var req request.VoteRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shrubs.RemoveVote(r.Context(), model.ShrubID(req.ShrubID), model.PlayerID(req.VoterID)); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
