package model

import "time"

// AcceptedScan is one persisted proof of presence. At most one exists per
// (session_id, device_id).
type AcceptedScan struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	DeviceID      string    `db:"device_id" json:"device_id"`
	ClientLat     float64   `db:"client_lat" json:"client_lat"`
	ClientLon     float64   `db:"client_lon" json:"client_lon"`
	ClientTS      time.Time `db:"client_ts" json:"client_ts"`
	ClaimNonce    string    `db:"claim_nonce" json:"claim_nonce"`
	IssuanceNonce string    `db:"issuance_nonce" json:"issuance_nonce"`
	ClientVersion string    `db:"client_version" json:"client_version"`
	DistanceM     float64   `db:"distance_m" json:"distance_m"`
	ManualReason  *string   `db:"manual_reason" json:"manual_reason,omitempty"`
	VerifiedAt    time.Time `db:"verified_at" json:"verified_at"`
}

func (s *AcceptedScan) IsManual() bool {
	return s.ManualReason != nil
}

type CreateAcceptedScanParams struct {
	SessionID     string
	SubjectID     string
	FirstName     string
	LastName      string
	DeviceID      string
	ClientLat     float64
	ClientLon     float64
	ClientTS      time.Time
	ClaimNonce    string
	IssuanceNonce string
	ClientVersion string
	DistanceM     float64
	ManualReason  *string
	VerifiedAt    time.Time
	// RequireActiveSession makes the insert conditional on the session still
	// being active at commit time.
	RequireActiveSession bool
}

// ArchivedScan is the immutable copy of an AcceptedScan taken when its session ends.
type ArchivedScan struct {
	AcceptedScan
	ArchivedAt time.Time `db:"archived_at" json:"archived_at"`
}

// RejectedScan mirrors whatever part of a claim was available when it failed.
type RejectedScan struct {
	ID            string        `db:"id" json:"id"`
	SessionID     *string       `db:"session_id" json:"session_id,omitempty"`
	SubjectID     *string       `db:"subject_id" json:"subject_id,omitempty"`
	FirstName     *string       `db:"first_name" json:"first_name,omitempty"`
	LastName      *string       `db:"last_name" json:"last_name,omitempty"`
	DeviceID      *string       `db:"device_id" json:"device_id,omitempty"`
	ClientLat     *float64      `db:"client_lat" json:"client_lat,omitempty"`
	ClientLon     *float64      `db:"client_lon" json:"client_lon,omitempty"`
	ClientTS      *string       `db:"client_ts" json:"client_ts,omitempty"`
	ClaimNonce    *string       `db:"claim_nonce" json:"claim_nonce,omitempty"`
	ClientVersion *string       `db:"client_version" json:"client_version,omitempty"`
	Code          RejectionCode `db:"code" json:"code"`
	Reason        string        `db:"reason" json:"reason"`
	RejectedAt    time.Time     `db:"rejected_at" json:"rejected_at"`
}

type CreateRejectedScanParams struct {
	SessionID     *string
	SubjectID     *string
	FirstName     *string
	LastName      *string
	DeviceID      *string
	ClientLat     *float64
	ClientLon     *float64
	ClientTS      *string
	ClaimNonce    *string
	ClientVersion *string
	Code          RejectionCode
	Reason        string
	RejectedAt    time.Time
}
