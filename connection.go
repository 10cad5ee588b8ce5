package ocigo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/petermattis/goid"
	"github.com/pkg/errors"

	"github.com/ocigo/oci-connector-go/oci"
)

// Connection is the driver specific surface of a live connection, beyond
// what database/sql exposes. Reach it through sql.Conn.Raw:
//
//	conn.Raw(func(dc interface{}) error {
//		return dc.(ocigo.Connection).BeginTransaction()
//	})
type Connection interface {
	BeginTransaction() error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	InTransaction() bool
	ErrorCode() string
	ErrorInfo() ErrorInfo
	Quote(s string) string
	CheckSequence(ctx context.Context, name string) (bool, error)
	Attribute(attr Attr) (interface{}, error)
	SetAttribute(attr Attr, value interface{}) error
	NewCursor() (oci.Statement, error)
	NewDescriptor(typ oci.DescriptorType) (oci.Descriptor, error)
	NewCollection(typeName, schema string) (oci.Collection, error)
	CloseCursor(cur oci.Statement) error
	ServerVersion() string
}

// ociConn owns one native session exclusively. database/sql serializes
// access per connection, so no locking happens here.
type ociConn struct {
	sess   oci.Session
	connId string
	cfg    *Config
	attrs  map[Attr]interface{}
	inTx   bool
	closed bool
}

var (
	_ driver.Conn               = (*ociConn)(nil)
	_ driver.ConnPrepareContext = (*ociConn)(nil)
	_ driver.ConnBeginTx        = (*ociConn)(nil)
	_ driver.ExecerContext      = (*ociConn)(nil)
	_ driver.QueryerContext     = (*ociConn)(nil)
	_ driver.Pinger             = (*ociConn)(nil)
	_ driver.Validator          = (*ociConn)(nil)
	_ driver.SessionResetter    = (*ociConn)(nil)
	_ driver.NamedValueChecker  = (*ociConn)(nil)
	_ Connection                = (*ociConn)(nil)
)

func (c *ociConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *ociConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.closed {
		return nil, driver.ErrBadConn
	}
	st, err := c.sess.Parse(ctx, query)
	if err != nil {
		mainLogger.ErrorWithStack(err, c.cfg.EnableLog)
		return nil, errors.Wrap(err, "prepare")
	}
	return newStmt(c, st, query), nil
}

func (c *ociConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	mainLogger.Debug(fmt.Sprintf("[%d]session %s closed", goid.Get(), c.connId), c.cfg.EnableLog)
	return c.sess.Close()
}

func (c *ociConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *ociConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.closed {
		return nil, driver.ErrBadConn
	}
	if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault {
		return nil, ErrIsolationLevel
	}
	if opts.ReadOnly {
		return nil, ErrReadOnly
	}
	if err := c.BeginTransaction(); err != nil {
		return nil, err
	}
	return &ociTx{conn: c}, nil
}

func (c *ociConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, valuesToNamed(args))
}

func (c *ociConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	st, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s := st.(*ociStmt)
	res, err := s.ExecContext(ctx, args)
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return res, err
}

func (c *ociConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, valuesToNamed(args))
}

func (c *ociConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	st, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s := st.(*ociStmt)
	rows, err := s.QueryContext(ctx, args)
	if err != nil {
		s.Close()
		return nil, err
	}
	// the statement handle lives until the rows are drained
	rows.(*ociRows).ownStmt = true
	return rows, nil
}

func (c *ociConn) Ping(ctx context.Context) (err error) {
	if c.closed {
		return driver.ErrBadConn
	}
	if err = c.sess.Ping(ctx); err != nil {
		mainLogger.ErrorWithStack(err, c.cfg.EnableLog)
		return driver.ErrBadConn
	}
	return nil
}

func (c *ociConn) CheckNamedValue(nv *driver.NamedValue) (err error) {
	return checkNamedValue(nv)
}

func (c *ociConn) ResetSession(ctx context.Context) error {
	if c.closed {
		return driver.ErrBadConn
	}
	// a pooled connection must never resurface mid transaction
	if c.inTx {
		if err := c.sess.Rollback(ctx); err != nil {
			return driver.ErrBadConn
		}
		c.inTx = false
	}
	return nil
}

func (c *ociConn) IsValid() bool {
	return !c.closed
}

// BeginTransaction marks the connection transactional. No call reaches the
// native library: the engine opens a transaction implicitly on the first
// statement, the driver merely stops committing per statement until Commit
// or Rollback.
func (c *ociConn) BeginTransaction() error {
	if c.closed {
		return driver.ErrBadConn
	}
	if c.inTx {
		return ErrActiveTransaction
	}
	c.inTx = true
	return nil
}

// Commit ends the transaction opened by BeginTransaction. The flag is
// cleared only when the native commit succeeds.
func (c *ociConn) Commit(ctx context.Context) error {
	if c.closed {
		return driver.ErrBadConn
	}
	if !c.inTx {
		return ErrNoActiveTransaction
	}
	if err := c.sess.Commit(ctx); err != nil {
		mainLogger.ErrorWithStack(err, c.cfg.EnableLog)
		return errors.Wrap(err, "commit")
	}
	c.inTx = false
	return nil
}

// Rollback discards the transaction opened by BeginTransaction. The flag
// is cleared only when the native rollback succeeds.
func (c *ociConn) Rollback(ctx context.Context) error {
	if c.closed {
		return driver.ErrBadConn
	}
	if !c.inTx {
		return ErrNoActiveTransaction
	}
	if err := c.sess.Rollback(ctx); err != nil {
		mainLogger.ErrorWithStack(err, c.cfg.EnableLog)
		return errors.Wrap(err, "rollback")
	}
	c.inTx = false
	return nil
}

// InTransaction reports whether BeginTransaction is pending a Commit or
// Rollback.
func (c *ociConn) InTransaction() bool {
	return c.inTx
}

// ErrorCode reports the state of the most recent native operation: "00000"
// after success, "HY000" after a failure.
func (c *ociConn) ErrorCode() string {
	return c.ErrorInfo().State
}

// ErrorInfo reads the native diagnostic record immediately. Running any
// other operation on the connection overwrites it.
func (c *ociConn) ErrorInfo() ErrorInfo {
	if nerr := c.sess.LastError(); nerr != nil {
		return ErrorInfo{State: stateGeneralError, Code: nerr.Code, Message: nerr.Message}
	}
	return ErrorInfo{State: stateSuccess}
}

// Quote wraps s in single quotes with embedded quotes doubled. It is a
// literal string fallback, not a general quoting facility: prefer bind
// parameters.
func (c *ociConn) Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CheckSequence reports whether a sequence with the given name exists in
// the current user's schema.
func (c *ociConn) CheckSequence(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	st, err := c.sess.Parse(ctx, checkSequenceQuery)
	if err != nil {
		return false, errors.Wrap(err, "check sequence")
	}
	defer st.Free()

	if err = st.BindAt(1, name, oci.BindChar); err != nil {
		return false, errors.Wrap(err, "check sequence")
	}
	if err = st.Execute(ctx, oci.ExecCommitOnSuccess); err != nil {
		return false, errors.Wrap(err, "check sequence")
	}
	dest := make([]driver.Value, 1)
	if err = st.Fetch(ctx, dest); err != nil {
		return false, errors.Wrap(err, "check sequence")
	}
	count, _ := asInt64(dest[0])
	return count > 0, nil
}

// SetAttribute stores an attribute value after validating it. The change
// applies to statements prepared afterwards.
func (c *ociConn) SetAttribute(attr Attr, value interface{}) error {
	switch attr {
	case AttrAutoCommit, AttrFetchLOBs:
		b, ok := value.(bool)
		if !ok {
			return errors.Errorf("attribute %s wants a bool, got %T", attr, value)
		}
		c.attrs[attr] = b
	case AttrPrefetch:
		n, ok := asInt64(value)
		if !ok || n < 0 {
			return errors.Errorf("attribute %s wants a non-negative int, got %v", attr, value)
		}
		c.attrs[attr] = int32(n)
	case AttrCase:
		n, ok := asInt64(value)
		if !ok || n < CaseNatural || n > CaseUpper {
			return errors.Errorf("attribute %s wants CaseNatural, CaseLower or CaseUpper", attr)
		}
		c.attrs[attr] = int(n)
	case AttrDriverName, AttrClientVersion, AttrServerVersion:
		// stored but never reported, Attribute answers these itself
		c.attrs[attr] = value
	default:
		return errors.Errorf("unknown attribute %s", attr)
	}
	return nil
}

// Attribute reports the current value of attr. AttrDriverName always
// reports the registered driver name, whatever was stored for it.
func (c *ociConn) Attribute(attr Attr) (interface{}, error) {
	switch attr {
	case AttrDriverName:
		return driverName, nil
	case AttrClientVersion:
		return Version, nil
	case AttrServerVersion:
		return c.sess.ServerVersion(), nil
	}
	if v, ok := c.attrs[attr]; ok {
		return v, nil
	}
	return nil, errors.Errorf("unknown attribute %s", attr)
}

// NewCursor allocates a statement handle for a REF CURSOR bind. The caller
// frees it through CloseCursor.
func (c *ociConn) NewCursor() (oci.Statement, error) {
	return c.sess.NewCursor()
}

// NewDescriptor allocates a descriptor of the given type. The caller
// drives the save and free calls.
func (c *ociConn) NewDescriptor(typ oci.DescriptorType) (oci.Descriptor, error) {
	return c.sess.NewDescriptor(typ)
}

// NewCollection allocates an instance of the named server-side collection
// type.
func (c *ociConn) NewCollection(typeName, schema string) (oci.Collection, error) {
	return c.sess.NewCollection(typeName, schema)
}

// CloseCursor releases a cursor obtained from NewCursor. Safe to repeat
// and safe on nil.
func (c *ociConn) CloseCursor(cur oci.Statement) error {
	if cur == nil {
		return nil
	}
	return cur.Free()
}

// ServerVersion reports the version banner of the connected server.
func (c *ociConn) ServerVersion() string {
	return c.sess.ServerVersion()
}
