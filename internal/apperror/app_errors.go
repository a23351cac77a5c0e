package apperror

import "errors"

// configuration errors, rejected before any session mutation.
var (
	ErrDuplicateMatch        = errors.New("game_id must be unique")
	ErrDuplicateIdentity     = errors.New("player id must be unique")
	ErrInvalidConfiguration  = errors.New("invalid game configuration")
	ErrNotFound              = errors.New("game not found")
	ErrSessionClosed         = errors.New("game already finished")
	ErrUnauthorized          = errors.New("unknown player_id for this game")
	ErrDuplicateConnection   = errors.New("player is already connected")
	ErrConnectionClosed      = errors.New("connection is closed")
	ErrIllegalMove           = errors.New("cell is already occupied")
	ErrNotYourTurn           = errors.New("it's not your turn")
	ErrGameFinished          = errors.New("game is already finished")
	ErrNoLegalAction         = errors.New("no legal action")
	ErrUnsupportedModelStore = errors.New("unsupported model store")
)
