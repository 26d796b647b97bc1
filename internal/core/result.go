package core

import "errors"

// Result is an explicit success/failure outcome for operations that
// must never fail loudly but whose callers may want the reason.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{OK: true}
}

// Failure returns a failed Result carrying reason.
func Failure(reason string) Result {
	return Result{Reason: reason}
}

// Err converts a failed Result into an error. Successful results return nil.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return errors.New(r.Reason)
}
