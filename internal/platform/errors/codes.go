// Package errors provides structured error handling with HTTP mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Beacon errors
	CodeBeaconTitleTooShort         Code = "BEACON_TITLE_TOO_SHORT"
	CodeBeaconInvalidType           Code = "BEACON_INVALID_TYPE"
	CodeBeaconInvalidWindow         Code = "BEACON_INVALID_WINDOW"
	CodeBeaconInvalidStatusChange   Code = "BEACON_INVALID_STATUS_TRANSITION"
	CodeBeaconCollisionExhausted    Code = "BEACON_COLLISION_EXHAUSTED"
	CodeBeaconNotOwned              Code = "BEACON_NOT_OWNED"
	CodeBeaconInvalidRadius         Code = "BEACON_INVALID_RADIUS"
	CodeBeaconInvalidCoordinates    Code = "BEACON_INVALID_COORDINATES"

	// Scan rejection errors, one per validator reason
	CodeScanNotActive          Code = "SCAN_NOT_ACTIVE"
	CodeScanOutsideWindow      Code = "SCAN_OUTSIDE_WINDOW"
	CodeScanOutOfRange         Code = "SCAN_OUT_OF_RANGE"
	CodeScanMembershipRequired Code = "SCAN_MEMBERSHIP_REQUIRED"
	CodeScanAlreadyScanned     Code = "SCAN_ALREADY_SCANNED_TODAY"

	// Ledger errors
	CodeLedgerZeroAmount    Code = "LEDGER_ZERO_AMOUNT"
	CodeLedgerEmptyActorID  Code = "LEDGER_EMPTY_ACTOR_ID"
	CodeLedgerInvalidReason Code = "LEDGER_INVALID_REASON"

	// Territory errors
	CodeContestAlreadyOpen  Code = "CONTEST_ALREADY_OPEN"
	CodeClaimNotHeld        Code = "CLAIM_NOT_HELD"
	CodeVenueEmptyID        Code = "VENUE_EMPTY_ID"

	// Storage errors
	CodeNotFound            Code = "NOT_FOUND"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeBeaconTitleTooShort,
		CodeBeaconInvalidType,
		CodeBeaconInvalidWindow,
		CodeBeaconInvalidRadius,
		CodeBeaconInvalidCoordinates,
		CodeLedgerZeroAmount,
		CodeLedgerEmptyActorID,
		CodeLedgerInvalidReason,
		CodeVenueEmptyID:
		return http.StatusBadRequest

	// Unprocessable - state doesn't allow the operation
	case CodeBeaconInvalidStatusChange,
		CodeScanNotActive,
		CodeScanOutsideWindow,
		CodeScanOutOfRange,
		CodeScanMembershipRequired,
		CodeScanAlreadyScanned,
		CodeContestAlreadyOpen,
		CodeClaimNotHeld:
		return http.StatusUnprocessableEntity

	// Forbidden - caller lacks ownership of the resource
	case CodeBeaconNotOwned:
		return http.StatusForbidden

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - a concurrent writer won the race
	case CodeConcurrencyConflict:
		return http.StatusConflict

	// Unavailable - code minting retries exhausted, caller may retry
	case CodeBeaconCollisionExhausted:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the whole request.
// Collision exhaustion and lost concurrency races are the only codes
// where a repeat attempt can have a different outcome.
func (c Code) Retryable() bool {
	switch c {
	case CodeBeaconCollisionExhausted, CodeConcurrencyConflict:
		return true
	default:
		return false
	}
}
