package entity

// Player is a participant of a match and the mark it plays.
type Player struct {
	ID   string `json:"id"`
	Mark string `json:"mark,omitempty"`
	Bot  bool   `json:"bot,omitempty"`
}

func (that *Player) IsBot() bool {
	return that.Bot
}
