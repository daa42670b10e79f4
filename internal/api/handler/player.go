package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/shrubbery/internal/api/request"
	"github.com/mcoot/shrubbery/internal/api/response"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/services/player"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	players *player.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(players *player.Service) *PlayerHandler {
	return &PlayerHandler{
		players: players,
	}
}

// Create handles POST /api/v1/players
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePlayerRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.players.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.PlayerFromModel(p))
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.ListAll(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayersFromModel(players))
}

// Get handles GET /api/v1/players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p, err := h.players.Get(r.Context(), model.PlayerID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerFromModel(p))
}

// GetByName handles GET /api/v1/players/name/{name}
func (h *PlayerHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, err := h.players.GetByName(r.Context(), name)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerFromModel(p))
}

// Leaderboard handles GET /api/v1/players/leaderboard
func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.players.Leaderboard(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerLeaderboard(standings))
}
