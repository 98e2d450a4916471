package model

import (
	"time"

	"github.com/openclaw/attendance-server-go/internal/geo"
)

type Session struct {
	ID        string     `db:"id" json:"session_id"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	AnchorLat float64    `db:"anchor_lat" json:"anchor_lat"`
	AnchorLon float64    `db:"anchor_lon" json:"anchor_lon"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	IsActive  bool       `db:"is_active" json:"is_active"`
}

func (s *Session) Anchor() geo.Point {
	return geo.Point{Lat: s.AnchorLat, Lon: s.AnchorLon}
}

func (s *Session) State() SessionState {
	if s.IsActive {
		return SessionStateActive
	}
	return SessionStateEnded
}

// SessionSummary is a session row with its record counts.
type SessionSummary struct {
	Session
	AcceptedCount int `db:"accepted_count" json:"accepted_count"`
	RejectedCount int `db:"rejected_count" json:"rejected_count"`
	ArchivedCount int `db:"archived_count" json:"archived_count"`
}

type CreateSessionParams struct {
	OwnerID   string
	AnchorLat float64
	AnchorLon float64
	StartedAt time.Time
}
