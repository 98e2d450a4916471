package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

// claimStringFields is the order malformed fields are reported in.
var claimStringFields = []string{
	"session_id", "token", "issuance_nonce", "subject_id", "first_name", "last_name",
	"client_ts", "device_id", "claim_nonce", "client_version",
}

// UnmarshalJSON decodes a claim without failing on field types, so a claim
// that is valid JSON always reaches the pipeline and gets a verdict. A
// coordinate that is present but not a number decodes to NaN and fails the
// GPS check. A string field of the wrong type is recorded as malformed. A
// body that is JSON but not an object decodes as an empty claim.
func (c *ClaimRequest) UnmarshalJSON(data []byte) error {
	*c = ClaimRequest{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil
		}
		return err
	}

	targets := map[string]*string{
		"session_id":     &c.SessionID,
		"token":          &c.Token,
		"issuance_nonce": &c.IssuanceNonce,
		"subject_id":     &c.SubjectID,
		"first_name":     &c.FirstName,
		"last_name":      &c.LastName,
		"client_ts":      &c.ClientTS,
		"device_id":      &c.DeviceID,
		"claim_nonce":    &c.ClaimNonce,
		"client_version": &c.ClientVersion,
	}
	for _, name := range claimStringFields {
		raw, ok := fields[name]
		if !ok || isJSONNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, targets[name]); err != nil {
			c.malformed = append(c.malformed, name)
		}
	}

	c.ClientLat = decodeCoordinate(fields["client_lat"])
	c.ClientLon = decodeCoordinate(fields["client_lon"])
	return nil
}

func decodeCoordinate(raw json.RawMessage) *float64 {
	if raw == nil || isJSONNull(raw) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		v = math.NaN()
	}
	return &v
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
