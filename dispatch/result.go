package dispatch

import (
	"errors"
	"fmt"
)

// =============================================================================
// RESULT - Expected outcomes are data, not errors
// =============================================================================

// Status tags a Result.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusConflict Status = "CONFLICT"
	StatusError    Status = "ERROR"
)

// ConflictingLoad names the load that blocks an assignment.
type ConflictingLoad struct {
	LoadID      string
	OrderNumber string
	LegID       string
}

// Result is the outcome of an assignment operation.
//
//	SUCCESS:  LegIDs lists the legs that were changed
//	CONFLICT: Conflict names the overlapping load
//	ERROR:    Message explains the business-rule violation
//
// Business-rule violations (inactive driver, canceled load, too few stops,
// time overlap) are Results. The error return of an operation is reserved for
// store failures.
type Result struct {
	Status   Status
	Message  string
	Conflict *ConflictingLoad
	LegIDs   []string
}

// Success builds a SUCCESS result.
func Success(legIDs ...string) Result {
	return Result{Status: StatusSuccess, LegIDs: legIDs}
}

// Conflict builds a CONFLICT result.
func Conflict(c ConflictingLoad) Result {
	msg := fmt.Sprintf("driver is already booked on load %s", c.LoadID)
	if c.OrderNumber != "" {
		msg = fmt.Sprintf("driver is already booked on load %s (%s)", c.OrderNumber, c.LoadID)
	}
	return Result{Status: StatusConflict, Message: msg, Conflict: &c}
}

// Failure builds an ERROR result.
func Failure(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// rejection carries a non-success Result out of a transaction so that the
// transaction rolls back.
type rejection struct {
	result Result
}

func (r *rejection) Error() string {
	return string(r.result.Status) + ": " + r.result.Message
}

func reject(r Result) error {
	return &rejection{result: r}
}

// asResult converts a rejection back into its Result.
func asResult(err error) (Result, bool) {
	var rej *rejection
	if errors.As(err, &rej) {
		return rej.result, true
	}
	return Result{}, false
}
