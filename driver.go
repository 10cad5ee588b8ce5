package ocigo

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

// OCIDriver maps database/sql onto the procedural native client library.
// The driver registers itself as "oci", the usual entry point is
//
//	db, err := sql.Open("oci", "user=scott;password=tiger;dbname=//db1:1521/XE")
type OCIDriver struct{}

// Open new Connection.
// See ParseDSN for how the DSN string is formatted.
func (d OCIDriver) Open(dsn string) (driver.Conn, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	c, err := NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

var driverName = "oci"

func init() {
	if driverName != "" {
		sql.Register(driverName, &OCIDriver{})
	}
}

// OpenConnector implements driver.DriverContext.
func (d OCIDriver) OpenConnector(dsn string) (driver.Connector, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewConnector(cfg)
}
