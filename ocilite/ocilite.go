// Package ocilite is an embedded stand-in for the vendor client library:
// it implements the full native client surface over an in-process SQLite
// engine, so the driver stack runs hermetically in tests and on machines
// without the vendor library.
//
// The dbname of a session is a database file path, ":memory:" included.
// Statement semantics follow SQLite, not the production engine: whether a
// statement returns rows is classified from its leading keyword, output
// parameters, cursors and collections are not available, and pooled
// sessions share state only for file databases.
package ocilite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/url"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ocigo/oci-connector-go/oci"
)

// ClientName is the name the package registers itself under.
const ClientName = "ocilite"

func init() {
	oci.Register(ClientName, &Client{})
}

// sqlite primary result codes reused for ocilite's own failures.
const (
	codeGeneral  = 1  // SQLITE_ERROR
	codeCantOpen = 14 // SQLITE_CANTOPEN
	codeMisuse   = 21 // SQLITE_MISUSE
)

var (
	errSessionClosed   = errors.New("session is closed")
	errStatementFreed  = errors.New("statement handle is freed")
	errDescriptorFreed = errors.New("descriptor is freed")
	errNoResult        = errors.New("no result set to fetch from")
	errNotSupported    = errors.New("not supported by the ocilite client")
)

// Client implements oci.Client over embedded SQLite databases. Transient
// sessions own a private database handle, pooled sessions share one per
// dbname and the last session to close releases it.
type Client struct {
	mu    sync.Mutex
	pools map[string]*pooledDB
}

type pooledDB struct {
	db   *sql.DB
	refs int
}

var _ oci.Client = (*Client)(nil)

func (c *Client) Connect(ctx context.Context, cfg oci.SessionConfig) (oci.Session, error) {
	if cfg.Database == "" {
		return nil, &oci.Error{Code: codeCantOpen, Message: "connect: empty database path"}
	}
	if cfg.Pooled {
		return c.connectPooled(ctx, cfg)
	}

	db, err := sql.Open("sqlite", dataSource(cfg))
	if err != nil {
		return nil, nativeError("connect", err)
	}
	sess, err := newSession(ctx, db, nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sess, nil
}

func (c *Client) connectPooled(ctx context.Context, cfg oci.SessionConfig) (oci.Session, error) {
	c.mu.Lock()
	if c.pools == nil {
		c.pools = make(map[string]*pooledDB)
	}
	pool, ok := c.pools[cfg.Database]
	if !ok {
		db, err := sql.Open("sqlite", dataSource(cfg))
		if err != nil {
			c.mu.Unlock()
			return nil, nativeError("connect", err)
		}
		pool = &pooledDB{db: db}
		c.pools[cfg.Database] = pool
	}
	pool.refs++
	c.mu.Unlock()

	sess, err := newSession(ctx, pool.db, func() { c.release(cfg.Database) })
	if err != nil {
		c.release(cfg.Database)
		return nil, err
	}
	return sess, nil
}

func (c *Client) release(database string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pool, ok := c.pools[database]
	if !ok {
		return
	}
	pool.refs--
	if pool.refs <= 0 {
		pool.db.Close()
		delete(c.pools, database)
	}
}

// uri query keys the sqlite driver understands, anything else in the
// passthrough params is dropped.
var allowedParams = map[string]bool{
	"mode":         true,
	"cache":        true,
	"immutable":    true,
	"_pragma":      true,
	"_time_format": true,
	"_txlock":      true,
}

func dataSource(cfg oci.SessionConfig) string {
	var keys []string
	for key := range cfg.Params {
		if allowedParams[key] {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return cfg.Database
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("file:")
	buf.WriteString(cfg.Database)
	sep := byte('?')
	for _, key := range keys {
		buf.WriteByte(sep)
		sep = '&'
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(cfg.Params[key]))
	}
	return buf.String()
}

// nativeError shapes err into the code and message pair of the boundary.
// The sqlite driver exposes its primary result code through Code().
func nativeError(op string, err error) *oci.Error {
	code := codeGeneral
	switch {
	case errors.Is(err, errSessionClosed), errors.Is(err, errStatementFreed), errors.Is(err, errDescriptorFreed):
		code = codeMisuse
	default:
		var coder interface{ Code() int }
		if errors.As(err, &coder) {
			code = coder.Code()
		}
	}
	return &oci.Error{Code: code, Message: op + ": " + err.Error()}
}

// session is one native connection: a dedicated sql.Conn, so BEGIN and
// COMMIT issued on it see each other.
type session struct {
	db      *sql.DB
	conn    *sql.Conn
	release func()

	openTx  bool
	version string
	closed  bool

	mu      sync.Mutex
	lastErr *oci.Error
}

var _ oci.Session = (*session)(nil)

func newSession(ctx context.Context, db *sql.DB, release func()) (*session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nativeError("connect", err)
	}
	s := &session{db: db, conn: conn, release: release}
	if err := conn.QueryRowContext(ctx, "select sqlite_version()").Scan(&s.version); err != nil {
		conn.Close()
		return nil, nativeError("connect", err)
	}
	return s, nil
}

// fail records err as the session's diagnostic record and returns it.
func (s *session) fail(op string, err error) *oci.Error {
	nerr := nativeError(op, err)
	s.mu.Lock()
	s.lastErr = nerr
	s.mu.Unlock()
	return nerr
}

// ok clears the diagnostic record after a successful operation.
func (s *session) ok() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *session) LastError() *oci.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *session) Parse(ctx context.Context, query string) (oci.Statement, error) {
	if s.closed {
		return nil, s.fail("parse", errSessionClosed)
	}
	if err := s.compile(ctx, query); err != nil {
		return nil, s.fail("parse", err)
	}
	prepared, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, s.fail("parse", err)
	}
	s.ok()
	return &statement{sess: s, prepared: prepared, query: query}, nil
}

// compile forces the engine to compile query right away. The sqlite
// driver defers compilation to the first execute, but the native parse
// call reports errors immediately, so ocilite runs the statement
// through EXPLAIN with every parameter bound to NULL. EXPLAIN compiles
// and returns the bytecode listing without running anything.
func (s *session) compile(ctx context.Context, query string) error {
	slots := paramSlots(query)
	args := make([]interface{}, 0, len(slots))
	for _, name := range slots {
		if name != "" {
			args = append(args, sql.Named(name, nil))
		} else {
			args = append(args, nil)
		}
	}
	rows, err := s.conn.QueryContext(ctx, "EXPLAIN "+query, args...)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return s.fail("commit", errSessionClosed)
	}
	if s.openTx {
		if _, err := s.conn.ExecContext(ctx, "COMMIT"); err != nil {
			return s.fail("commit", err)
		}
		s.openTx = false
	}
	s.ok()
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if s.closed {
		return s.fail("rollback", errSessionClosed)
	}
	if s.openTx {
		if _, err := s.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
			return s.fail("rollback", err)
		}
		s.openTx = false
	}
	s.ok()
	return nil
}

// beginIfNeeded opens the engine transaction a deferred execute runs in.
func (s *session) beginIfNeeded(ctx context.Context) error {
	if s.openTx {
		return nil
	}
	if _, err := s.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return err
	}
	s.openTx = true
	return nil
}

func (s *session) Ping(ctx context.Context) error {
	if s.closed {
		return s.fail("ping", errSessionClosed)
	}
	if err := s.conn.PingContext(ctx); err != nil {
		return s.fail("ping", err)
	}
	s.ok()
	return nil
}

func (s *session) NewCursor() (oci.Statement, error) {
	return nil, s.fail("cursor", errNotSupported)
}

func (s *session) NewDescriptor(typ oci.DescriptorType) (oci.Descriptor, error) {
	if s.closed {
		return nil, s.fail("descriptor", errSessionClosed)
	}
	if typ != oci.DescriptorLOB {
		return nil, s.fail("descriptor", errNotSupported)
	}
	s.ok()
	return &descriptor{}, nil
}

func (s *session) NewCollection(typeName, schema string) (oci.Collection, error) {
	return nil, s.fail("collection", errNotSupported)
}

func (s *session) ServerVersion() string {
	return "ocilite/" + s.version
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.conn.Close()
	if s.release != nil {
		s.release()
	} else if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
