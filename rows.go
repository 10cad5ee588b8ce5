package ocigo

import (
	"context"
	"database/sql/driver"
	"io"

	"github.com/pkg/errors"

	"github.com/ocigo/oci-connector-go/oci"
)

// ociRows drains the result set of an executed statement. On the Query
// path of the connection the rows own the statement handle and free it on
// Close.
type ociRows struct {
	stmt    *ociStmt
	cols    []oci.Column
	ownStmt bool
	closed  bool
}

var (
	_ driver.Rows                           = (*ociRows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*ociRows)(nil)
)

func newRows(s *ociStmt) *ociRows {
	return &ociRows{stmt: s, cols: s.st.Columns()}
}

// Columns reports the column names shaped by the connection's AttrCase.
func (r *ociRows) Columns() []string {
	names := make([]string, len(r.cols))
	for i, col := range r.cols {
		names[i] = transformCase(col.Name, r.stmt.nameCase)
	}
	return names
}

// ColumnTypeDatabaseTypeName reports the native type name of the column.
func (r *ociRows) ColumnTypeDatabaseTypeName(index int) string {
	return r.cols[index].TypeName
}

func (r *ociRows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	if err := r.stmt.st.Fetch(context.Background(), dest); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		mainLogger.ErrorWithStack(err, r.stmt.conn.cfg.EnableLog)
		return errors.Wrap(err, "fetch")
	}
	if r.stmt.fetchLOBs {
		for i, v := range dest {
			desc, ok := v.(oci.Descriptor)
			if !ok {
				continue
			}
			data, err := desc.Load()
			if err != nil {
				return errors.Wrap(err, "loading lob column")
			}
			dest[i] = data
		}
	}
	return nil
}

func (r *ociRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.ownStmt {
		return r.stmt.Close()
	}
	return nil
}

// ociResult is the driver.Result of an executed statement.
type ociResult struct {
	affected int64
}

var _ driver.Result = (*ociResult)(nil)

// LastInsertId always fails: the engine has no insert id concept, session
// sequences fill that role.
func (res *ociResult) LastInsertId() (int64, error) {
	return 0, ErrLastInsertID
}

func (res *ociResult) RowsAffected() (int64, error) {
	return res.affected, nil
}
