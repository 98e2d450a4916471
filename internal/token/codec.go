// Package token issues and pre-filters the rotating codes shown on a session display.
//
// A code has the form "<unix_ms>:<hex hmac-sha256>". The MAC covers the session id,
// the timestamp and a random per-issuance nonce that is never transmitted, so a
// code cannot be forged from a known timestamp. CheckFormat is a cheap structural
// and age filter; the persisted token registry remains the authoritative check.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/attendance-server-go/internal/util"
)

const macHexLen = 64

type Codec struct {
	secret     string
	validity   time.Duration
	futureSkew time.Duration
	newNonce   func() string
}

func NewCodec(secret string, validity, futureSkew time.Duration) *Codec {
	return &Codec{
		secret:     secret,
		validity:   validity,
		futureSkew: futureSkew,
		newNonce:   uuid.NewString,
	}
}

func (c *Codec) Validity() time.Duration {
	return c.validity
}

// Issue returns a fresh code for sessionID stamped at now, and its expiry in
// now's location.
func (c *Codec) Issue(sessionID string, now time.Time) (string, time.Time) {
	ts := now.UnixMilli()
	mac := util.HmacSHA256(c.secret, fmt.Sprintf("%s:%d:%s", sessionID, ts, c.newNonce()))
	return fmt.Sprintf("%d:%s", ts, mac), time.UnixMilli(ts).In(now.Location()).Add(c.validity)
}

// CheckFormat reports whether value is structurally a code and its embedded
// timestamp is neither further than the skew allowance in the future nor older
// than maxAge relative to now. It does not verify the MAC.
func (c *Codec) CheckFormat(value string, now time.Time, maxAge time.Duration) bool {
	ts, ok := parse(value)
	if !ok {
		return false
	}

	age := now.Sub(time.UnixMilli(ts))
	if age < -c.futureSkew {
		return false
	}
	return age <= maxAge
}

// IssuedAt extracts the issuance time embedded in value, in UTC.
func IssuedAt(value string) (time.Time, bool) {
	ts, ok := parse(value)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ts).UTC(), true
}

func parse(value string) (int64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ts <= 0 {
		return 0, false
	}

	if len(parts[1]) != macHexLen || !isLowerHex(parts[1]) {
		return 0, false
	}
	return ts, true
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
