package model

type SessionState string

const (
	SessionStateActive SessionState = "active"
	SessionStateEnded  SessionState = "ended"
)

// RejectionCode classifies why a claim was turned down.
type RejectionCode string

const (
	RejectMissingFields   RejectionCode = "MISSING_FIELDS"
	RejectInvalidGPS      RejectionCode = "INVALID_GPS"
	RejectSessionInactive RejectionCode = "SESSION_INACTIVE"
	RejectDeviceRecorded  RejectionCode = "DEVICE_ALREADY_RECORDED"
	RejectTokenInvalid    RejectionCode = "TOKEN_INVALID"
	RejectTokenNotFound   RejectionCode = "TOKEN_NOT_FOUND"
	RejectClockSkew       RejectionCode = "CLOCK_SKEW"
	RejectTooFar          RejectionCode = "TOO_FAR"
)

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)
