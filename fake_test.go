package ocigo

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"testing"

	"github.com/ocigo/oci-connector-go/oci"
)

// recorder keeps the native calls a test drives through the driver, one
// readable line per call, in order.
type recorder struct {
	calls []string
}

func (r *recorder) record(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() {
	r.calls = nil
}

func assertCalls(t *testing.T, rec *recorder, want ...string) {
	t.Helper()
	if len(rec.calls) != len(want) {
		t.Fatalf("Recorded %d native calls, want %d\n got: %v\nwant: %v", len(rec.calls), len(want), rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("Native call %d is %q, want %q\nall: %v", i, rec.calls[i], want[i], rec.calls)
		}
	}
}

// kind names the shape of a bound value in recorded calls.
func kind(value interface{}) string {
	switch value.(type) {
	case oci.Descriptor:
		return "descriptor"
	case oci.Statement:
		return "cursor"
	case oci.Collection:
		return "collection"
	}
	return "scalar"
}

// fakeClient hands out scripted sessions and remembers the last one.
type fakeClient struct {
	rec        *recorder
	connectErr *oci.Error
	sess       *fakeSession
}

var _ oci.Client = (*fakeClient)(nil)

func (c *fakeClient) Connect(ctx context.Context, cfg oci.SessionConfig) (oci.Session, error) {
	c.rec.record("client.Connect(pooled=%t)", cfg.Pooled)
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.sess = &fakeSession{rec: c.rec, cfg: cfg, version: "FakeDB 19.3"}
	return c.sess, nil
}

// fakeSession is a scripted native session. Tests fill the script fields
// before driving the driver, every statement parsed afterwards serves
// them.
type fakeSession struct {
	rec *recorder
	cfg oci.SessionConfig

	lastErr *oci.Error

	parseErr    *oci.Error
	commitErr   *oci.Error
	rollbackErr *oci.Error
	pingErr     *oci.Error
	descErr     *oci.Error
	saveErr     *oci.Error

	// script consumed by the next Parse
	rows     [][]driver.Value
	cols     []oci.Column
	affected int64
	execErr  *oci.Error
	outs     map[string]driver.Value

	commits   int
	rollbacks int
	closed    bool
	version   string
}

var _ oci.Session = (*fakeSession)(nil)

func (s *fakeSession) fail(err *oci.Error) error {
	s.lastErr = err
	return err
}

func (s *fakeSession) Parse(ctx context.Context, query string) (oci.Statement, error) {
	s.rec.record("session.Parse")
	if s.parseErr != nil {
		return nil, s.fail(s.parseErr)
	}
	s.lastErr = nil
	return &fakeStmt{
		sess:     s,
		rec:      s.rec,
		query:    query,
		rows:     s.rows,
		cols:     s.cols,
		affected: s.affected,
		execErr:  s.execErr,
		outs:     s.outs,
	}, nil
}

func (s *fakeSession) Commit(ctx context.Context) error {
	s.rec.record("session.Commit")
	if s.commitErr != nil {
		return s.fail(s.commitErr)
	}
	s.commits++
	s.lastErr = nil
	return nil
}

func (s *fakeSession) Rollback(ctx context.Context) error {
	s.rec.record("session.Rollback")
	if s.rollbackErr != nil {
		return s.fail(s.rollbackErr)
	}
	s.rollbacks++
	s.lastErr = nil
	return nil
}

func (s *fakeSession) LastError() *oci.Error {
	return s.lastErr
}

func (s *fakeSession) Ping(ctx context.Context) error {
	s.rec.record("session.Ping")
	if s.pingErr != nil {
		return s.fail(s.pingErr)
	}
	s.lastErr = nil
	return nil
}

func (s *fakeSession) NewCursor() (oci.Statement, error) {
	s.rec.record("session.NewCursor")
	return &fakeStmt{sess: s, rec: s.rec}, nil
}

func (s *fakeSession) NewDescriptor(typ oci.DescriptorType) (oci.Descriptor, error) {
	s.rec.record("session.NewDescriptor(%s)", typ)
	if s.descErr != nil {
		return nil, s.fail(s.descErr)
	}
	s.lastErr = nil
	return &fakeDesc{rec: s.rec, typ: typ, saveErr: s.saveErr}, nil
}

func (s *fakeSession) NewCollection(typeName, schema string) (oci.Collection, error) {
	s.rec.record("session.NewCollection(%s,%s)", typeName, schema)
	return &fakeColl{}, nil
}

func (s *fakeSession) ServerVersion() string {
	return s.version
}

func (s *fakeSession) Close() error {
	s.rec.record("session.Close")
	s.closed = true
	return nil
}

type fakeStmt struct {
	sess  *fakeSession
	rec   *recorder
	query string

	rows     [][]driver.Value
	cols     []oci.Column
	affected int64
	execErr  *oci.Error
	outs     map[string]driver.Value

	next     int
	prefetch int32
	freed    bool
	lastErr  *oci.Error
}

var _ oci.Statement = (*fakeStmt)(nil)

func (st *fakeStmt) fail(err *oci.Error) error {
	st.lastErr = err
	st.sess.lastErr = err
	return err
}

func (st *fakeStmt) Bind(name string, value driver.Value, typ oci.BindType) error {
	st.rec.record("stmt.Bind(%s,%s,%s)", name, kind(value), typ)
	return nil
}

func (st *fakeStmt) BindAt(pos int, value driver.Value, typ oci.BindType) error {
	st.rec.record("stmt.BindAt(%d,%s,%s)", pos, kind(value), typ)
	return nil
}

func (st *fakeStmt) BindOut(name string, size int, typ oci.BindType) error {
	st.rec.record("stmt.BindOut(%s,%s,%d)", name, typ, size)
	return nil
}

func (st *fakeStmt) OutValue(name string) (driver.Value, bool) {
	v, ok := st.outs[name]
	return v, ok
}

func (st *fakeStmt) SetPrefetch(rows int32) error {
	st.rec.record("stmt.SetPrefetch(%d)", rows)
	st.prefetch = rows
	return nil
}

func (st *fakeStmt) Execute(ctx context.Context, mode oci.ExecMode) error {
	st.rec.record("stmt.Execute(%s)", mode)
	if st.execErr != nil {
		return st.fail(st.execErr)
	}
	st.next = 0
	st.lastErr = nil
	st.sess.lastErr = nil
	return nil
}

func (st *fakeStmt) RowsAffected() int64 {
	return st.affected
}

func (st *fakeStmt) Columns() []oci.Column {
	return st.cols
}

func (st *fakeStmt) Fetch(ctx context.Context, dest []driver.Value) error {
	st.rec.record("stmt.Fetch")
	if st.next >= len(st.rows) {
		return io.EOF
	}
	copy(dest, st.rows[st.next])
	st.next++
	return nil
}

func (st *fakeStmt) LastError() *oci.Error {
	return st.lastErr
}

func (st *fakeStmt) Free() error {
	if st.freed {
		return nil
	}
	st.freed = true
	st.rec.record("stmt.Free")
	return nil
}

type fakeDesc struct {
	rec     *recorder
	typ     oci.DescriptorType
	buf     []byte
	saveErr *oci.Error
	freed   bool
}

var _ oci.Descriptor = (*fakeDesc)(nil)

func (d *fakeDesc) Type() oci.DescriptorType {
	return d.typ
}

func (d *fakeDesc) Save(data []byte) error {
	d.rec.record("desc.Save(%d)", len(data))
	if d.saveErr != nil {
		return d.saveErr
	}
	d.buf = append(d.buf[:0], data...)
	return nil
}

func (d *fakeDesc) Load() ([]byte, error) {
	d.rec.record("desc.Load")
	return append([]byte(nil), d.buf...), nil
}

func (d *fakeDesc) Free() error {
	if d.freed {
		return nil
	}
	d.freed = true
	d.rec.record("desc.Free")
	return nil
}

type fakeColl struct {
	values []driver.Value
}

var _ oci.Collection = (*fakeColl)(nil)

func (c *fakeColl) Append(value driver.Value) error {
	c.values = append(c.values, value)
	return nil
}

func (c *fakeColl) Get(index int) (driver.Value, error) {
	if index < 0 || index >= len(c.values) {
		return nil, &oci.Error{Code: 22165, Message: "collection index out of bounds"}
	}
	return c.values[index], nil
}

func (c *fakeColl) Len() (int, error) {
	return len(c.values), nil
}

func (c *fakeColl) Free() error {
	c.values = nil
	return nil
}

// testConn opens a driver connection over a fresh fake client. The
// recorder starts empty, the connect call itself is already dropped.
func testConn(t *testing.T, opts ...Option) (*ociConn, *fakeSession, *recorder) {
	t.Helper()
	rec := &recorder{}
	client := &fakeClient{rec: rec}

	cfg := NewConfig()
	cfg.Dbname = "//fake:1521/TEST"
	cfg.EnableLog = false
	if err := cfg.Apply(opts...); err != nil {
		t.Fatalf("Failed to apply config options: %v", err)
	}

	conn, err := NewConnectorWithClient(cfg, client).Connect(context.Background())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	rec.reset()
	return conn.(*ociConn), client.sess, rec
}
