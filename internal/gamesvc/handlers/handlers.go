package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/apperr"
	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/gamesvc/service"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

// PlayerClaim is the JWT claim holding the player identifier.
const PlayerClaim = "player"

// EventReader replays archived game events.
type EventReader interface {
	ByGame(ctx context.Context, gameID uint64) ([]events.Event, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	games     *service.GameService
	balances  *service.BalanceService
	archive   EventReader
	port      string
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, games *service.GameService, balances *service.BalanceService, archive EventReader, port string) *Handler {
	return &Handler{tokenAuth: tokenAuth, games: games, balances: balances, archive: archive, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

// StatusFor maps a rejected call to an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Identity:
		return http.StatusNotFound
	case apperr.Authorization:
		return http.StatusForbidden
	case apperr.TurnOrder:
		return http.StatusConflict
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Integrity:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Errorf("Error %s %s: %s", r.Method, r.URL.Path, err)
		msg = http.StatusText(code)
	}
	h.CreateResponse(w, Response{Code: code, Error: msg})
}

func (h *Handler) ok(w http.ResponseWriter, data interface{}) {
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: data})
}

var errNoPlayer = apperr.New(apperr.Authorization, "token carries no player")

func player(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", errNoPlayer
	}
	p, _ := claims[PlayerClaim].(string)
	if p == "" {
		return "", errNoPlayer
	}
	return p, nil
}

func gameID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.Validation, "game id must be a positive integer")
	}
	return id, nil
}

// command decodes the optional JSON body of a game command.
func command(r *http.Request) (comm.Command, error) {
	var c comm.Command
	if r.Body == nil || r.ContentLength == 0 {
		return c, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, apperr.New(apperr.Validation, "malformed request body")
	}
	return c, nil
}

type gameCall func(ctx context.Context, player string, id uint64, c comm.Command) (mastermind.Snapshot, error)

// game builds a handler for a command on /games/{id}/...
func (h *Handler) game(call gameCall) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := player(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		id, err := gameID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c, err := command(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		snap, err := call(r.Context(), p, id, c)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, snap)
	}
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	p, err := player(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := command(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.games.CreateGame(r.Context(), p, c.Opponent)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "created", Code: http.StatusCreated, Data: snap})
}

// JoinOpenGame joins the oldest open game.
func (h *Handler) JoinOpenGame(w http.ResponseWriter, r *http.Request) {
	p, err := player(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.games.JoinGame(r.Context(), p, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, snap)
}

func (h *Handler) OpenGames(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.games.OpenGames())
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.games.GetGame(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, snap)
}

func (h *Handler) GameEvents(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.archive == nil {
		h.fail(w, r, errors.New("event archive not configured"))
		return
	}
	evs, err := h.archive.ByGame(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, evs)
}

func (h *Handler) ActiveGame(w http.ResponseWriter, r *http.Request) {
	p, err := player(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.games.ActiveGame(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, snap)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	p, err := player(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := h.games.History(r.Context(), p, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, games)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	p, err := player(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	balance, err := h.balances.GetPlayerBalance(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, comm.PlayerData{Player: p, Balance: balance.StringFixed(2)})
}
