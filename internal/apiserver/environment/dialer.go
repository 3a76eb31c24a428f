package environment

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

const (
	KindPostgres = "postgres"
	KindMySQL    = "mysql"
	KindMSSQL    = "mssql"
)

// driverNames maps a kind onto its database/sql driver
var driverNames = map[string]string{
	KindPostgres: "pgx",
	KindMySQL:    "mysql",
	KindMSSQL:    "sqlserver",
}

var defaultPorts = map[string]int{
	KindPostgres: 5432,
	KindMySQL:    3306,
	KindMSSQL:    1433,
}

// Target is a decrypted connection profile
type Target struct {
	Kind     string
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Options  url.Values
}

// Dialer checks that a target accepts connections
type Dialer interface {
	Ping(ctx context.Context, t Target) error
}

// SQLDialer opens a database/sql pool for the target and pings it
type SQLDialer struct{}

func (SQLDialer) Ping(ctx context.Context, t Target) error {
	driver, ok := driverNames[t.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, t.Kind)
	}
	dsn, err := DSN(t)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	return db.PingContext(ctx)
}

// DSN renders the driver specific connection string of t
func DSN(t Target) (string, error) {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	switch t.Kind {
	case KindPostgres:
		q := url.Values{"sslmode": {"disable"}}
		for k, v := range t.Options {
			q[k] = v
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(t.Username, t.Password),
			Host:     addr,
			Path:     "/" + t.Database,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case KindMySQL:
		cfg := mysqldriver.NewConfig()
		cfg.User = t.Username
		cfg.Passwd = t.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = t.Database
		cfg.Timeout = 10 * time.Second
		if len(t.Options) > 0 {
			cfg.Params = map[string]string{}
			for k := range t.Options {
				cfg.Params[k] = t.Options.Get(k)
			}
		}
		return cfg.FormatDSN(), nil

	case KindMSSQL:
		q := url.Values{}
		if t.Database != "" {
			q.Set("database", t.Database)
		}
		for k, v := range t.Options {
			q[k] = v
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(t.Username, t.Password),
			Host:     addr,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, t.Kind)
	}
}
