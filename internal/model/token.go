package model

import "time"

type RotatingToken struct {
	ID         int64     `db:"id" json:"-"`
	SessionID  string    `db:"session_id" json:"session_id"`
	TokenValue string    `db:"token_value" json:"token"`
	IssuedAt   time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
}

type CreateTokenParams struct {
	SessionID  string
	TokenValue string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
