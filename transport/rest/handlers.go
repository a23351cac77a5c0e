package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

const maxBodyBytes = 1 << 14

var errValidation = errors.New("validation error")

type sessionCreator interface {
	CreateSession(ctx context.Context, config usecase.SessionConfig) (*usecase.Session, error)
}

type Handlers struct {
	logger  *slog.Logger
	manager sessionCreator
}

func NewHandlers(logger *slog.Logger, manager sessionCreator) *Handlers {
	return &Handlers{
		logger:  logger.With("component", "rest"),
		manager: manager,
	}
}

func (that *Handlers) Register(r chi.Router) {
	r.Get("/ping", that.Ping)
	r.Post("/online", that.CreateOnline)
	r.Post("/ai", that.CreateAI)
	r.Post("/offline", that.CreateOffline)
}

type onlineRequest struct {
	GameID         *string `json:"game_id"`
	PlayerX        *string `json:"player_x"`
	PlayerO        *string `json:"player_o"`
	StartingPlayer *string `json:"starting_player"`
}

type aiRequest struct {
	GameID         *string `json:"game_id"`
	PlayerID       *string `json:"player_id"`
	PlayerChoice   *string `json:"player_choice"`
	StartingPlayer *string `json:"starting_player"`
}

type offlineRequest struct {
	GameID         *string `json:"game_id"`
	PlayerID       *string `json:"player_id"`
	PlayerChoice   *string `json:"player_choice"`
	StartingPlayer *string `json:"starting_player"`
}

type createResponse struct {
	WSPath string `json:"ws_path"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// CreateOnline - registers a match between two players; starting_player names one of them.
func (that *Handlers) CreateOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if !that.decode(w, r, &req) {
		return
	}

	gameID, err := requiredID("game_id", req.GameID)
	if err == nil {
		req.PlayerX, err = trimmed("player_x", req.PlayerX)
	}
	if err == nil {
		req.PlayerO, err = trimmed("player_o", req.PlayerO)
	}
	if err != nil {
		that.fail(w, err)
		return
	}

	playerX, playerO := *req.PlayerX, *req.PlayerO
	if playerX == playerO {
		that.fail(w, fmt.Errorf("%w: player_x and player_o must be different", errValidation))
		return
	}

	starting := tictactoe.PlayerX
	if req.StartingPlayer != nil {
		player, err := trimmed("starting_player", req.StartingPlayer)
		if err != nil {
			that.fail(w, err)
			return
		}

		switch *player {
		case playerX:
		case playerO:
			starting = tictactoe.PlayerO
		default:
			that.fail(w, fmt.Errorf("%w: starting_player must be player_x or player_o", errValidation))
			return
		}
	}

	that.create(w, r, usecase.SessionConfig{
		MatchID:      gameID,
		Mode:         usecase.ModeOnline,
		Identities:   []string{playerX, playerO},
		StartingMark: starting,
	}, "/ws/online/"+gameID)
}

// CreateAI - registers a match against the engine. Marks default to X for the player and X to start.
func (that *Handlers) CreateAI(w http.ResponseWriter, r *http.Request) {
	var req aiRequest
	if !that.decode(w, r, &req) {
		return
	}

	gameID, err := requiredID("game_id", req.GameID)
	if err != nil {
		that.fail(w, err)
		return
	}

	playerID, err := requiredID("player_id", req.PlayerID)
	if err != nil {
		that.fail(w, err)
		return
	}

	choice, err := optionalMark("player_choice", req.PlayerChoice, tictactoe.PlayerX)
	if err != nil {
		that.fail(w, err)
		return
	}

	starting, err := optionalMark("starting_player", req.StartingPlayer, tictactoe.PlayerX)
	if err != nil {
		that.fail(w, err)
		return
	}

	that.create(w, r, usecase.SessionConfig{
		MatchID:      gameID,
		Mode:         usecase.ModeAI,
		Identities:   []string{playerID},
		PlayerMark:   choice,
		StartingMark: starting,
	}, "/ws/ai/"+gameID)
}

// CreateOffline - registers a hot-seat match; the one player plays both marks.
func (that *Handlers) CreateOffline(w http.ResponseWriter, r *http.Request) {
	var req offlineRequest
	if !that.decode(w, r, &req) {
		return
	}

	gameID, err := requiredID("game_id", req.GameID)
	if err != nil {
		that.fail(w, err)
		return
	}

	playerID, err := requiredID("player_id", req.PlayerID)
	if err != nil {
		that.fail(w, err)
		return
	}

	if req.PlayerChoice == nil {
		that.fail(w, fmt.Errorf("%w: player_choice is required", errValidation))
		return
	}

	choice, err := optionalMark("player_choice", req.PlayerChoice, "")
	if err != nil {
		that.fail(w, err)
		return
	}

	starting, err := optionalMark("starting_player", req.StartingPlayer, choice)
	if err != nil {
		that.fail(w, err)
		return
	}

	that.create(w, r, usecase.SessionConfig{
		MatchID:      gameID,
		Mode:         usecase.ModeLocal,
		Identities:   []string{playerID},
		PlayerMark:   choice,
		StartingMark: starting,
	}, "/ws/"+gameID)
}

func (that *Handlers) create(w http.ResponseWriter, r *http.Request, config usecase.SessionConfig, wsPath string) {
	log := that.logger.With("method", "create", "mode", config.Mode)

	if _, err := that.manager.CreateSession(r.Context(), config); err != nil {
		log.Info("session rejected", "game_id", config.MatchID, "error", err)
		that.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createResponse{WSPath: wsPath})
}

func (that *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			that.fail(w, fmt.Errorf("%w: %s must be a string", errValidation, typeErr.Field))
			return false
		}

		that.fail(w, fmt.Errorf("%w: invalid request body", errValidation))
		return false
	}

	return true
}

// fail - answers 400 with a detail naming the problem.
func (that *Handlers) fail(w http.ResponseWriter, err error) {
	detail := err.Error()

	switch {
	case errors.Is(err, apperror.ErrDuplicateMatch):
		detail = apperror.ErrDuplicateMatch.Error()
	case errors.Is(err, apperror.ErrDuplicateIdentity):
		detail = apperror.ErrDuplicateIdentity.Error()
	case errors.Is(err, errValidation):
		detail = strings.TrimPrefix(detail, errValidation.Error()+": ")
	case errors.Is(err, apperror.ErrInvalidConfiguration):
		detail = strings.TrimPrefix(detail, apperror.ErrInvalidConfiguration.Error()+": ")
	default:
		that.logger.Error("unexpected error creating session", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}

	writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func trimmed(field string, value *string) (*string, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: %s is required", errValidation, field)
	}

	stripped := strings.TrimSpace(*value)
	if stripped == "" {
		return nil, fmt.Errorf("%w: %s must not be empty", errValidation, field)
	}

	return &stripped, nil
}

func requiredID(field string, value *string) (string, error) {
	stripped, err := trimmed(field, value)
	if err != nil {
		return "", err
	}

	return *stripped, nil
}

func optionalMark(field string, value *string, fallback string) (string, error) {
	if value == nil {
		return fallback, nil
	}

	if !tictactoe.DefaultPlayers.Has(*value) {
		return "", fmt.Errorf("%w: %s must be %s or %s", errValidation, field, tictactoe.PlayerX, tictactoe.PlayerO)
	}

	return *value, nil
}
