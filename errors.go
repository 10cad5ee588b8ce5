package ocigo

import (
	"errors"
)

// Various errors the driver might return. Can change between driver versions.
var (
	ErrActiveTransaction   = errors.New("there is already an active transaction")
	ErrNoActiveTransaction = errors.New("there is no active transaction")
	ErrLastInsertID        = errors.New("lastInsertId is not supported, select from a sequence instead")
	ErrMixedBinding        = errors.New("cannot mix named and positional parameters")
	ErrIsolationLevel      = errors.New("isolation levels are not supported")
	ErrReadOnly            = errors.New("read-only transactions are not supported")
	ErrStmtClosed          = errors.New("statement is closed")
)

var (
	ErrMissingDbname = errors.New("invalid DSN: missing required dbname")
)

// ErrorInfo is the three part diagnostic record of the most recent native
// operation: a fixed state discriminant, the native error code and the
// native message. State "00000" with a zero code and an empty message
// means the operation succeeded.
type ErrorInfo struct {
	State   string
	Code    int
	Message string
}
