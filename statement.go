package ocigo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/petermattis/goid"
	"github.com/pkg/errors"

	"github.com/ocigo/oci-connector-go/oci"
)

// Blob marks a []byte argument for the large object bind protocol: the
// driver allocates a LOB descriptor, saves the bytes into it and binds the
// descriptor in place of the scalar. Plain []byte stays a RAW bind.
type Blob []byte

// Clob is the character flavor of Blob.
type Clob string

// ociStmt wraps one parsed native statement handle.
type ociStmt struct {
	conn   *ociConn
	st     oci.Statement
	query  string
	closed bool

	// attribute snapshot taken at prepare time
	autoCommit bool
	prefetch   int32
	nameCase   int
	fetchLOBs  bool

	// descriptors allocated by the LOB bind protocol, freed on Close
	lobs []oci.Descriptor
}

var (
	_ driver.Stmt              = (*ociStmt)(nil)
	_ driver.StmtExecContext   = (*ociStmt)(nil)
	_ driver.StmtQueryContext  = (*ociStmt)(nil)
	_ driver.NamedValueChecker = (*ociStmt)(nil)
)

func newStmt(c *ociConn, st oci.Statement, query string) *ociStmt {
	s := &ociStmt{conn: c, st: st, query: query}
	s.autoCommit, _ = c.attrs[AttrAutoCommit].(bool)
	s.prefetch, _ = c.attrs[AttrPrefetch].(int32)
	s.nameCase, _ = c.attrs[AttrCase].(int)
	s.fetchLOBs, _ = c.attrs[AttrFetchLOBs].(bool)
	return s
}

func (s *ociStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.freeLOBs()
	return s.st.Free()
}

func (s *ociStmt) freeLOBs() {
	for _, d := range s.lobs {
		if err := d.Free(); err != nil {
			mainLogger.Warn(fmt.Sprintf("freeing lob descriptor: %v", err), s.conn.cfg.EnableLog)
		}
	}
	s.lobs = nil
}

// NumInput returns -1: placeholders are resolved by the native library,
// the driver does not parse SQL.
func (s *ociStmt) NumInput() int {
	return -1
}

func (s *ociStmt) CheckNamedValue(nv *driver.NamedValue) (err error) {
	return checkNamedValue(nv)
}

// checkNamedValue admits the default driver values plus the LOB markers,
// output parameters and the raw native handle types.
func checkNamedValue(nv *driver.NamedValue) error {
	switch nv.Value.(type) {
	case Blob, Clob, sql.Out, oci.Descriptor, oci.Statement, oci.Collection:
		return nil
	}
	value, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = value
	return nil
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

func (s *ociStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *ociStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.execute(ctx, args); err != nil {
		return nil, err
	}
	return &ociResult{affected: s.st.RowsAffected()}, nil
}

func (s *ociStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *ociStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := s.execute(ctx, args); err != nil {
		return nil, err
	}
	return newRows(s), nil
}

// Bind forwards a raw bind to the native statement, bypassing the driver's
// value handling. RETURNING INTO flows stay caller driven: allocate a
// descriptor, bind it here, execute, then Save and Free on the descriptor.
func (s *ociStmt) Bind(name string, value interface{}, typ oci.BindType) error {
	if s.closed {
		return ErrStmtClosed
	}
	return s.st.Bind(strings.TrimPrefix(name, ":"), value, typ)
}

func (s *ociStmt) execute(ctx context.Context, args []driver.NamedValue) error {
	if s.closed {
		return ErrStmtClosed
	}
	// re-executing rebinds, descriptors of the previous run are dead
	s.freeLOBs()

	outs, err := s.bindArgs(args)
	if err != nil {
		return err
	}

	if s.prefetch > 0 {
		if err := s.st.SetPrefetch(s.prefetch); err != nil {
			mainLogger.Warn(fmt.Sprintf("setting prefetch to %d: %v", s.prefetch, err), s.conn.cfg.EnableLog)
		}
	}

	// A statement between BeginTransaction and Commit must not commit
	// itself. LOB saves ride an engine transaction too: execute deferred,
	// commit once the content is in place.
	mode := oci.ExecCommitOnSuccess
	ownCommit := false
	if s.conn.inTx || !s.autoCommit {
		mode = oci.ExecNoAutoCommit
	} else if len(s.lobs) > 0 {
		mode = oci.ExecNoAutoCommit
		ownCommit = true
	}

	sqlLogger.Debug(fmt.Sprintf("[%d]session %s executing: %s", goid.Get(), s.conn.connId, s.query), s.conn.cfg.EnableLog)

	if err := s.st.Execute(ctx, mode); err != nil {
		mainLogger.ErrorWithStack(err, s.conn.cfg.EnableLog)
		return errors.Wrap(err, "execute")
	}

	if err := s.writeOutValues(outs); err != nil {
		return err
	}

	if ownCommit {
		if err := s.conn.sess.Commit(ctx); err != nil {
			mainLogger.ErrorWithStack(err, s.conn.cfg.EnableLog)
			return errors.Wrap(err, "commit")
		}
	}
	return nil
}

// outBind remembers where an output value goes after the execute.
type outBind struct {
	name string
	dest interface{}
}

func (s *ociStmt) bindArgs(args []driver.NamedValue) ([]outBind, error) {
	var named, positional bool
	for _, arg := range args {
		if arg.Name != "" {
			named = true
		} else {
			positional = true
		}
	}
	if named && positional {
		return nil, ErrMixedBinding
	}

	var outs []outBind
	for _, arg := range args {
		out, err := s.bindArg(arg)
		if err != nil {
			return nil, err
		}
		if out != nil {
			outs = append(outs, *out)
		}
	}
	return outs, nil
}

func (s *ociStmt) bindArg(arg driver.NamedValue) (*outBind, error) {
	name := strings.TrimPrefix(arg.Name, ":")

	switch v := arg.Value.(type) {
	case Blob:
		return nil, s.bindLOB(name, arg.Ordinal, []byte(v), oci.BindBlob)
	case Clob:
		return nil, s.bindLOB(name, arg.Ordinal, []byte(v), oci.BindClob)
	case sql.Out:
		if name == "" {
			return nil, errors.New("output parameters must be bound by name")
		}
		if v.In {
			return nil, errors.New("in/out parameters are not supported")
		}
		typ, size := outBindType(v.Dest)
		if err := s.st.BindOut(name, size, typ); err != nil {
			return nil, errors.Wrap(err, "binding output parameter "+name)
		}
		return &outBind{name: name, dest: v.Dest}, nil
	case oci.Descriptor:
		return nil, s.bindValue(name, arg.Ordinal, v, descriptorBindType(v.Type()))
	case oci.Statement:
		return nil, s.bindValue(name, arg.Ordinal, v, oci.BindCursor)
	case oci.Collection:
		return nil, s.bindValue(name, arg.Ordinal, v, oci.BindCollection)
	default:
		return nil, s.bindValue(name, arg.Ordinal, arg.Value, scalarBindType(arg.Value))
	}
}

func (s *ociStmt) bindValue(name string, pos int, value interface{}, typ oci.BindType) error {
	var err error
	if name != "" {
		err = s.st.Bind(name, value, typ)
	} else {
		err = s.st.BindAt(pos, value, typ)
	}
	if err != nil {
		return errors.Wrap(err, "bind")
	}
	return nil
}

// bindLOB runs the descriptor side of the LOB protocol: allocate, save the
// buffered value, bind the descriptor in place of the scalar. The
// descriptor stays alive until the statement closes.
func (s *ociStmt) bindLOB(name string, pos int, data []byte, typ oci.BindType) error {
	desc, err := s.conn.sess.NewDescriptor(oci.DescriptorLOB)
	if err != nil {
		return errors.Wrap(err, "allocating lob descriptor")
	}
	if err = desc.Save(data); err != nil {
		desc.Free()
		return errors.Wrap(err, "saving lob value")
	}
	if err = s.bindValue(name, pos, desc, typ); err != nil {
		desc.Free()
		return err
	}
	s.lobs = append(s.lobs, desc)
	return nil
}

func (s *ociStmt) writeOutValues(outs []outBind) error {
	for _, out := range outs {
		v, ok := s.st.OutValue(out.name)
		if !ok {
			return errors.Errorf("no output value for parameter %s", out.name)
		}
		if err := convertOut(out.dest, v); err != nil {
			return err
		}
	}
	return nil
}

func scalarBindType(v driver.Value) oci.BindType {
	switch v.(type) {
	case int64, bool:
		return oci.BindInt
	case float64:
		return oci.BindFloat
	case []byte:
		return oci.BindRaw
	case time.Time:
		return oci.BindDate
	}
	return oci.BindChar
}

func descriptorBindType(typ oci.DescriptorType) oci.BindType {
	switch typ {
	case oci.DescriptorFile:
		return oci.BindFile
	case oci.DescriptorRowid:
		return oci.BindRowid
	}
	return oci.BindBlob
}

func outBindType(dest interface{}) (oci.BindType, int) {
	switch dest.(type) {
	case *int64, *int32, *int:
		return oci.BindInt, 8
	case *float64:
		return oci.BindFloat, 8
	case *[]byte:
		return oci.BindRaw, 4000
	}
	return oci.BindChar, 4000
}

func convertOut(dest interface{}, v driver.Value) error {
	switch d := dest.(type) {
	case *string:
		switch s := v.(type) {
		case string:
			*d = s
		case []byte:
			*d = string(s)
		case nil:
			*d = ""
		default:
			*d = fmt.Sprint(v)
		}
	case *int64:
		n, ok := asInt64(v)
		if !ok {
			return errors.Errorf("cannot convert output value %T to int64", v)
		}
		*d = n
	case *float64:
		switch f := v.(type) {
		case float64:
			*d = f
		case int64:
			*d = float64(f)
		default:
			return errors.Errorf("cannot convert output value %T to float64", v)
		}
	case *[]byte:
		switch b := v.(type) {
		case []byte:
			*d = append([]byte(nil), b...)
		case string:
			*d = []byte(b)
		case nil:
			*d = nil
		default:
			return errors.Errorf("cannot convert output value %T to []byte", v)
		}
	case *interface{}:
		*d = v
	default:
		return errors.Errorf("unsupported output destination %T", dest)
	}
	return nil
}
