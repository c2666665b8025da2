// Package protoerr models the three-way error taxonomy shared by all four
// protocol engines: verification failure, protocol-internal invariant
// violation, and environmental failure.
package protoerr

import (
	"errors"
	"fmt"
)

// ErrVerification is the sentinel wrapped by every verification failure
// (GCM tag mismatch, bad signature, id mismatch, missing/duplicate TagDB
// row, HMAC mismatch, no matching path). Callers should test with
// errors.Is(err, ErrVerification); VerifyTag surfaces these as (false, nil),
// never as a panic or an untyped error.
var ErrVerification = errors.New("verification failed")

// Verification wraps reason with ErrVerification so errors.Is still matches.
func Verification(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrVerification)
}
