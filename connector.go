package ocigo

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"github.com/pkg/errors"

	"github.com/ocigo/oci-connector-go/oci"
)

type connector struct {
	cfg    *Config
	client oci.Client
}

// NewConnector returns new driver.Connector. The native client is resolved
// from the registry by cfg.Client.
func NewConnector(cfg *Config) (driver.Connector, error) {
	client, err := oci.Lookup(cfg.Client)
	if err != nil {
		return nil, err
	}
	return newConnector(cfg.Clone(), client), nil
}

// NewConnectorWithClient returns a driver.Connector bound to the given
// native client directly, bypassing the registry.
func NewConnectorWithClient(cfg *Config, client oci.Client) driver.Connector {
	return newConnector(cfg.Clone(), client)
}

func newConnector(cfg *Config, client oci.Client) *connector {
	return &connector{
		cfg:    cfg,
		client: client,
	}
}

// Connect implements driver.Connector interface.
// Connect returns a connection to the database.
func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	cfg := c.cfg

	if cfg.LogLevel >= 0 {
		SetLevel(cfg.LogLevel)
	}

	sess, err := c.client.Connect(ctx, cfg.sessionConfig())
	if err != nil {
		mainLogger.ErrorWithStack(err, cfg.EnableLog)
		return nil, errors.Wrap(err, "connect")
	}

	conn := &ociConn{
		sess:   sess,
		connId: uuid.NewString(),
		cfg:    cfg,
		attrs:  cfg.attributes(),
	}
	mainLogger.Debug(fmt.Sprintf("[%d]session %s connected to %s", goid.Get(), conn.connId, cfg.Dbname), cfg.EnableLog)
	return conn, nil
}

func (c *connector) Driver() driver.Driver {
	return &OCIDriver{}
}
