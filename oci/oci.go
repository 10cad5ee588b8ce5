// Package oci defines the procedural surface of the native client library
// the driver delegates to. The driver itself never talks to the engine: it
// parses its DSN, picks a registered Client and forwards every call here.
// A vendor binding implements these interfaces in production, the ocilite
// package implements them over an embedded engine for tests and machines
// without the vendor library.
package oci

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
)

// SessionConfig carries everything a connect call needs. Params holds the
// DSN keys the driver did not recognize, passed through untouched.
type SessionConfig struct {
	Username string
	Password string
	Database string // connect identifier: //host:port/service, an alias or a file path
	Charset  string
	Pooled   bool // route the connect through the client's pooled variant
	Params   map[string]string
}

// Error is the code and message pair the native last-error query reports.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("native error %d", e.Code)
	}
	return e.Message
}

// ExecMode selects the commit behavior of a single execute call.
type ExecMode int

const (
	// ExecCommitOnSuccess commits the implicit statement transaction when
	// the execute succeeds.
	ExecCommitOnSuccess ExecMode = iota
	// ExecNoAutoCommit leaves the transaction open. The session commits or
	// rolls back later.
	ExecNoAutoCommit
	// ExecDescribeOnly resolves the column metadata without running the
	// statement.
	ExecDescribeOnly
)

func (m ExecMode) String() string {
	switch m {
	case ExecCommitOnSuccess:
		return "commit"
	case ExecNoAutoCommit:
		return "defer"
	case ExecDescribeOnly:
		return "describe"
	}
	return "execmode(" + strconv.Itoa(int(m)) + ")"
}

// DescriptorType selects what a descriptor allocation refers to.
type DescriptorType int

const (
	DescriptorLOB DescriptorType = iota
	DescriptorFile
	DescriptorRowid
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorLOB:
		return "lob"
	case DescriptorFile:
		return "file"
	case DescriptorRowid:
		return "rowid"
	}
	return "descriptor(" + strconv.Itoa(int(t)) + ")"
}

// BindType tells the native library how to interpret a bound value.
type BindType int

const (
	BindChar BindType = iota
	BindInt
	BindFloat
	BindRaw
	BindDate
	BindBlob
	BindClob
	BindFile
	BindCursor
	BindCollection
	BindRowid
)

func (t BindType) String() string {
	switch t {
	case BindChar:
		return "char"
	case BindInt:
		return "int"
	case BindFloat:
		return "float"
	case BindRaw:
		return "raw"
	case BindDate:
		return "date"
	case BindBlob:
		return "blob"
	case BindClob:
		return "clob"
	case BindFile:
		return "bfile"
	case BindCursor:
		return "cursor"
	case BindCollection:
		return "collection"
	case BindRowid:
		return "rowid"
	}
	return "bindtype(" + strconv.Itoa(int(t)) + ")"
}

// Column describes one projected column of an executed statement.
type Column struct {
	Name     string
	TypeName string
}

// Client opens native sessions. Implementations register themselves with
// Register, usually from an init function.
type Client interface {
	// Connect opens a session for cfg. The transient and pooled connect
	// variants are selected by cfg.Pooled.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is one native connection. A session is owned by a single
// goroutine at a time, implementations do not need to lock around the
// statement calls.
type Session interface {
	// Parse compiles query into a statement handle. No execution happens.
	Parse(ctx context.Context, query string) (Statement, error)

	// Commit ends the open engine transaction. Committing with nothing
	// pending succeeds.
	Commit(ctx context.Context) error

	// Rollback discards the open engine transaction.
	Rollback(ctx context.Context) error

	// LastError reports the diagnostic record of the most recent operation
	// on this session, nil when it succeeded. Any following operation
	// overwrites it.
	LastError() *Error

	// Ping checks that the session is still usable.
	Ping(ctx context.Context) error

	// NewCursor allocates a statement handle for a REF CURSOR bind. The
	// handle is not parsed, the engine fills it during execution.
	NewCursor() (Statement, error)

	// NewDescriptor allocates a descriptor of the given type.
	NewDescriptor(typ DescriptorType) (Descriptor, error)

	// NewCollection allocates an instance of the named collection type.
	NewCollection(typeName, schema string) (Collection, error)

	// ServerVersion reports the version banner of the connected server.
	ServerVersion() string

	Close() error
}

// Statement is one parsed statement handle. Binds accumulate until
// Execute, Fetch drains the result set, Free releases the handle.
type Statement interface {
	// Bind attaches value to the named placeholder. Value may be a scalar
	// driver.Value or a Descriptor, Statement or Collection handle, typ
	// tells the library which.
	Bind(name string, value driver.Value, typ BindType) error

	// BindAt is Bind by placeholder position, 1-based.
	BindAt(pos int, value driver.Value, typ BindType) error

	// BindOut registers the named placeholder as an output of size bytes.
	// The value is available through OutValue after Execute.
	BindOut(name string, size int, typ BindType) error

	// OutValue reports the value the execute left in the named output
	// bind. The second result is false when no such bind exists.
	OutValue(name string) (driver.Value, bool)

	// SetPrefetch sets how many rows the library fetches ahead per round
	// trip. Advisory, zero keeps the client default.
	SetPrefetch(rows int32) error

	// Execute runs the statement with the accumulated binds.
	Execute(ctx context.Context, mode ExecMode) error

	// RowsAffected reports the row count of the last DML execute.
	RowsAffected() int64

	// Columns describes the result set of the last execute, nil for
	// statements that produce none.
	Columns() []Column

	// Fetch reads the next row into dest and returns io.EOF when the
	// result set is exhausted.
	Fetch(ctx context.Context, dest []driver.Value) error

	// LastError reports the diagnostic record of the most recent operation
	// on this handle, nil when it succeeded.
	LastError() *Error

	// Free releases the handle. Freeing twice is a no-op.
	Free() error
}

// Descriptor is an allocated locator, typically for a large object. Save
// writes the buffered content, Load reads it back.
type Descriptor interface {
	Type() DescriptorType
	Save(data []byte) error
	Load() ([]byte, error)

	// Free releases the descriptor. Freeing twice is a no-op.
	Free() error
}

// Collection is an instance of a server-side collection type.
type Collection interface {
	Append(value driver.Value) error
	Get(index int) (driver.Value, error)
	Len() (int, error)
	Free() error
}
