package domain

import "time"

// TurnRecord is one committed user/assistant pair written to the activity log.
type TurnRecord struct {
	SessionID string    `json:"session_id"`
	Turn      int       `json:"turn"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Recovered bool      `json:"recovered,omitempty"`
	At        time.Time `json:"at"`
}

// SessionMeta stores aggregate session state alongside mirrored turns.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	LastActivity string
	Turns        int
	TTL          int64
}
