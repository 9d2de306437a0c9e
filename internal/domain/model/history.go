package model

import "time"

// Role of a recorded turn. Persisted as a small integer.
type Role int16

const (
	RoleSystem    Role = 0
	RoleUser      Role = 1
	RoleAssistant Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// HistoryTurn is one recorded message of a story conversation.
type HistoryTurn struct {
	ID        int64
	UserID    int64
	Role      Role
	Message   string
	CreatedAt time.Time
}
