// Package repository is the data façade over the Member, Seat,
// Subscription, Food and OrderTable tables.  Every method maps one business
// action to one parameterized statement, or to one explicit transaction
// when the action touches more than one row set.
//
// Failures are reported as *OpError values whose Kind is one of the
// sentinels below, so callers can tell a missing row from an unreachable
// database or a rejected write:
//
//	ErrNotFound   – the statement ran and matched nothing.
//	ErrTransient  – connectivity, timeout, deadlock; safe to retry.
//	ErrIntegrity  – duplicate key or broken reference.
//	ErrConflict   – the row exists but its state forbids the change.
//	ErrForbidden  – the caller does not own the resource.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrTransient = errors.New("transient failure")
	ErrIntegrity = errors.New("integrity violation")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// Row-specific absences.  Each one still matches ErrNotFound.
var (
	ErrMemberNotFound = &kindError{msg: "member not found", kind: ErrNotFound}
	ErrSeatNotFound   = &kindError{msg: "seat not found", kind: ErrNotFound}
	ErrPlanNotFound   = &kindError{msg: "plan not found", kind: ErrNotFound}
	ErrFoodNotFound   = &kindError{msg: "food not found", kind: ErrNotFound}
	ErrSeatOccupied   = &kindError{msg: "seat occupied", kind: ErrConflict}
	ErrTimeExhausted  = &kindError{msg: "no remaining time", kind: ErrConflict}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// OpError records the façade operation that failed, the outcome kind and
// the underlying cause.
type OpError struct {
	Op   string
	Kind error // one of the sentinels above, nil when unclassified
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err == nil && e.Kind == nil:
		return e.Op
	case e.Err == nil || e.Err == e.Kind:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil || errors.Is(e.Err, e.Kind):
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the driver error to errors.Is/As.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// MySQL server error numbers the façade classifies.
const (
	erDupEntry         = 1062
	erNoReferencedRow  = 1216
	erRowIsReferenced  = 1217
	erRowIsReferenced2 = 1451
	erNoReferencedRow2 = 1452
	erBadNull          = 1048
	erConCount         = 1040
	erLockWaitTimeout  = 1205
	erLockDeadlock     = 1213
	crServerGone       = 2006
	crServerLost       = 2013
	erQueryInterrupted = 1317
	erServerShutdown   = 1053
)

// Classify maps a driver error to its outcome kind.  It returns nil for
// errors it does not recognise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{ErrNotFound, ErrTransient, ErrIntegrity, ErrConflict, ErrForbidden} {
		if errors.Is(err, k) {
			return k
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erDupEntry, erNoReferencedRow, erRowIsReferenced, erRowIsReferenced2, erNoReferencedRow2, erBadNull:
			return ErrIntegrity
		case erConCount, erLockWaitTimeout, erLockDeadlock, crServerGone, crServerLost, erQueryInterrupted, erServerShutdown:
			return ErrTransient
		}
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrTransient
	}
	return nil
}

// wrap turns err into an *OpError for op.  Errors that already carry an
// *OpError are returned unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Kind: Classify(err), Err: err}
}

// track classifies *errp and records the call's latency and outcome.  It is
// deferred at the top of every façade method with a named error result.
func track(op string, start time.Time, errp *error) {
	*errp = wrap(op, *errp)
	recorder.ObserveQuery(op, Outcome(*errp), time.Since(start))
}

// Outcome names the result of a call for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// Recorder receives one observation per façade call.
type Recorder interface {
	ObserveQuery(op, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, string, time.Duration) {}

var recorder Recorder = nopRecorder{}

// SetRecorder installs the metrics sink for all repositories.  Passing nil
// restores the no-op recorder.
func SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	recorder = r
}
