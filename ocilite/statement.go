package ocilite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"

	"github.com/ocigo/oci-connector-go/oci"
)

// bindArg is one accumulated bind. Either name or pos is set.
type bindArg struct {
	name  string
	pos   int // 1-based
	value driver.Value
	typ   oci.BindType
}

// statement wraps one prepared sqlite statement. Binds accumulate until
// Execute, rebinding a name or position replaces the earlier value.
type statement struct {
	sess     *session
	prepared *sql.Stmt
	query    string

	binds    []bindArg
	prefetch int32

	rows     *sql.Rows
	cols     []oci.Column
	affected int64
	freed    bool

	lastErr *oci.Error
}

var _ oci.Statement = (*statement)(nil)

// fail records err on the statement and the owning session.
func (st *statement) fail(op string, err error) *oci.Error {
	nerr := st.sess.fail(op, err)
	st.lastErr = nerr
	return nerr
}

func (st *statement) ok() {
	st.sess.ok()
	st.lastErr = nil
}

func (st *statement) LastError() *oci.Error {
	return st.lastErr
}

func (st *statement) Bind(name string, value driver.Value, typ oci.BindType) error {
	if st.freed {
		return st.fail("bind", errStatementFreed)
	}
	switch typ {
	case oci.BindCursor, oci.BindCollection:
		return st.fail("bind", errNotSupported)
	}
	name = strings.TrimPrefix(name, ":")
	for i := range st.binds {
		if st.binds[i].name == name && st.binds[i].name != "" {
			st.binds[i] = bindArg{name: name, value: value, typ: typ}
			st.ok()
			return nil
		}
	}
	st.binds = append(st.binds, bindArg{name: name, value: value, typ: typ})
	st.ok()
	return nil
}

func (st *statement) BindAt(pos int, value driver.Value, typ oci.BindType) error {
	if st.freed {
		return st.fail("bind", errStatementFreed)
	}
	if pos < 1 {
		return st.fail("bind", fmt.Errorf("bind position %d out of range", pos))
	}
	switch typ {
	case oci.BindCursor, oci.BindCollection:
		return st.fail("bind", errNotSupported)
	}
	for i := range st.binds {
		if st.binds[i].pos == pos && st.binds[i].name == "" {
			st.binds[i] = bindArg{pos: pos, value: value, typ: typ}
			st.ok()
			return nil
		}
	}
	st.binds = append(st.binds, bindArg{pos: pos, value: value, typ: typ})
	st.ok()
	return nil
}

func (st *statement) BindOut(name string, size int, typ oci.BindType) error {
	return st.fail("bind", errNotSupported)
}

func (st *statement) OutValue(name string) (driver.Value, bool) {
	return nil, false
}

func (st *statement) SetPrefetch(rows int32) error {
	if st.freed {
		return st.fail("prefetch", errStatementFreed)
	}
	// advisory only, sqlite has no row prefetch
	st.prefetch = rows
	return nil
}

func (st *statement) Execute(ctx context.Context, mode oci.ExecMode) error {
	if st.freed {
		return st.fail("execute", errStatementFreed)
	}
	if st.rows != nil {
		// re-executing drops the previous result set
		st.rows.Close()
		st.rows = nil
	}

	args, err := st.callArgs()
	if err != nil {
		return st.fail("execute", err)
	}

	if mode == oci.ExecDescribeOnly {
		rows, err := st.prepared.QueryContext(ctx, args...)
		if err != nil {
			return st.fail("execute", err)
		}
		cols, err := describeColumns(rows)
		rows.Close()
		if err != nil {
			return st.fail("execute", err)
		}
		st.cols = cols
		st.affected = 0
		st.ok()
		return nil
	}

	if mode == oci.ExecNoAutoCommit {
		if err := st.sess.beginIfNeeded(ctx); err != nil {
			return st.fail("execute", err)
		}
	}

	if isQuery(st.query) {
		rows, err := st.prepared.QueryContext(ctx, args...)
		if err != nil {
			return st.fail("execute", err)
		}
		cols, err := describeColumns(rows)
		if err != nil {
			rows.Close()
			return st.fail("execute", err)
		}
		st.rows = rows
		st.cols = cols
		st.affected = 0
	} else {
		res, err := st.prepared.ExecContext(ctx, args...)
		if err != nil {
			return st.fail("execute", err)
		}
		st.affected, _ = res.RowsAffected()
		st.cols = nil
	}
	st.ok()
	return nil
}

// callArgs lays the accumulated binds out as database/sql arguments.
// Named binds keep their name. A positional bind resolves to the
// parameter at that slot of the statement text: sqlite treats ":1" as a
// named parameter, so BindAt(1, v) against ":1" must arrive as
// sql.Named("1", v), never as a bare ordinal.
func (st *statement) callArgs() ([]interface{}, error) {
	var slots []string
	args := make([]interface{}, 0, len(st.binds))
	for _, b := range st.binds {
		value, err := bindValue(b)
		if err != nil {
			return nil, err
		}
		if b.name != "" {
			args = append(args, sql.Named(b.name, value))
			continue
		}
		if slots == nil {
			slots = paramSlots(st.query)
		}
		if b.pos > len(slots) {
			return nil, fmt.Errorf("bind position %d exceeds the statement's %d parameters", b.pos, len(slots))
		}
		if name := slots[b.pos-1]; name != "" {
			args = append(args, sql.Named(name, value))
			continue
		}
		for len(args) < b.pos {
			args = append(args, nil)
		}
		args[b.pos-1] = value
	}
	return args, nil
}

// paramSlots lists the statement's placeholders in order: ":name",
// "@name" and "$name" forms yield the bare name (repeats share one
// slot, matching sqlite's parameter indexing), a bare "?" yields an
// empty slot bound by position. String literals, quoted identifiers
// and comments are skipped. The real client learns the slots from the
// parse, ocilite scans the text, in the same spirit as isQuery.
func paramSlots(query string) []string {
	var slots []string
	seen := make(map[string]bool)
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`':
			for i++; i < len(query) && query[i] != c; i++ {
			}
		case '[':
			for i++; i < len(query) && query[i] != ']'; i++ {
			}
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				for i += 2; i < len(query) && query[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				end := strings.Index(query[i+2:], "*/")
				if end < 0 {
					return slots
				}
				i += end + 3
			}
		case '?':
			slots = append(slots, "")
		case ':', '@', '$':
			j := i + 1
			for j < len(query) && isParamByte(query[j]) {
				j++
			}
			if j > i+1 {
				name := query[i+1 : j]
				if !seen[name] {
					seen[name] = true
					slots = append(slots, name)
				}
				i = j - 1
			}
		}
	}
	return slots
}

func isParamByte(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '_'
}

// bindValue resolves a bound descriptor to its buffered content. The
// production engine reads the locator at execute time, ocilite inlines the
// bytes instead.
func bindValue(b bindArg) (interface{}, error) {
	desc, ok := b.value.(oci.Descriptor)
	if !ok {
		return b.value, nil
	}
	data, err := desc.Load()
	if err != nil {
		return nil, err
	}
	if b.typ == oci.BindClob {
		return string(data), nil
	}
	return data, nil
}

func (st *statement) RowsAffected() int64 {
	return st.affected
}

func (st *statement) Columns() []oci.Column {
	return st.cols
}

func (st *statement) Fetch(ctx context.Context, dest []driver.Value) error {
	if st.freed {
		return st.fail("fetch", errStatementFreed)
	}
	if st.rows == nil {
		return st.fail("fetch", errNoResult)
	}
	if !st.rows.Next() {
		if err := st.rows.Err(); err != nil {
			return st.fail("fetch", err)
		}
		st.ok()
		return io.EOF
	}

	row := make([]interface{}, len(dest))
	for i := range row {
		row[i] = new(interface{})
	}
	if err := st.rows.Scan(row...); err != nil {
		return st.fail("fetch", err)
	}
	for i := range dest {
		dest[i] = *(row[i].(*interface{}))
	}
	st.ok()
	return nil
}

func (st *statement) Free() error {
	if st.freed {
		return nil
	}
	st.freed = true

	var err error
	if st.rows != nil {
		err = st.rows.Close()
		st.rows = nil
	}
	if cerr := st.prepared.Close(); err == nil {
		err = cerr
	}
	return err
}

func describeColumns(rows *sql.Rows) ([]oci.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]oci.Column, len(types))
	for i, t := range types {
		cols[i] = oci.Column{Name: t.Name(), TypeName: t.DatabaseTypeName()}
	}
	return cols, nil
}

// isQuery reports whether the statement produces a result set. The real
// client knows from the parse, ocilite classifies the leading keyword.
func isQuery(query string) bool {
	q := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return false
			}
			q = strings.TrimSpace(q[nl+1:])
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q, "*/")
			if end < 0 {
				return false
			}
			q = strings.TrimSpace(q[end+2:])
		default:
			kw := q
			if i := strings.IndexAny(q, " \t\r\n(;"); i >= 0 {
				kw = q[:i]
			}
			switch strings.ToUpper(kw) {
			case "SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN":
				return true
			}
			return false
		}
	}
}

// descriptor is an in-memory stand-in for a LOB locator: Save buffers the
// bytes, a bound descriptor contributes them at execute time.
type descriptor struct {
	buf   []byte
	freed bool
}

var _ oci.Descriptor = (*descriptor)(nil)

func (d *descriptor) Type() oci.DescriptorType {
	return oci.DescriptorLOB
}

func (d *descriptor) Save(data []byte) error {
	if d.freed {
		return errDescriptorFreed
	}
	d.buf = append(d.buf[:0], data...)
	return nil
}

func (d *descriptor) Load() ([]byte, error) {
	if d.freed {
		return nil, errDescriptorFreed
	}
	return append([]byte(nil), d.buf...), nil
}

func (d *descriptor) Free() error {
	d.freed = true
	d.buf = nil
	return nil
}
