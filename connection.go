package tenantsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

// Environment variables read by EnvProps
const (
	EnvDriver   = "DB_DRIVER"
	EnvHost     = "DB_HOST"
	EnvUser     = "DB_USER"
	EnvPassword = "DB_PASSWORD"
	EnvDatabase = "DB_NAME"
	EnvPort     = "DB_PORT"
)

/*
ConnectionProps describes how to reach one tenant database. Zero values mean
"not set" so that layers can be merged with MergeProps. Password is a pointer
because an empty password is a valid setting.
*/
type ConnectionProps struct {
	Driver   string
	Host     string
	User     string
	Password *string
	Database string
	Port     string
	// Params are extra DSN parameters, e.g. sslmode for postgres
	Params map[string]string
	// ServiceName turns on dd-trace-go tracing, each connection reports under its own name
	ServiceName  *string
	MaxIdleConns *int
	MaxOpenConns *int
	MaxIdleTime  *int
	MaxLifeTime  *int
}

// DefaultProps are used for anything no other layer sets
var DefaultProps = ConnectionProps{
	Driver:   "mysql",
	Host:     "localhost",
	User:     "root",
	Password: String(""),
	Database: "",
	Port:     "3306",
}

// String returns a pointer to v, for the optional ConnectionProps fields
func String(v string) *string {
	return &v
}

// LoadEnv loads a .env file into the process environment when one exists
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// EnvProps reads the DB_* variables through getenv
func EnvProps(getenv func(string) string) ConnectionProps {
	if getenv == nil {
		getenv = os.Getenv
	}
	props := ConnectionProps{
		Driver:   getenv(EnvDriver),
		Host:     getenv(EnvHost),
		User:     getenv(EnvUser),
		Database: getenv(EnvDatabase),
		Port:     getenv(EnvPort),
	}
	if password := getenv(EnvPassword); password != "" {
		props.Password = &password
	}
	return props
}

/*
MergeProps folds layers from highest to lowest precedence. Each field takes the
first non-empty value, pointer fields the first non-nil one.
*/
func MergeProps(layers ...ConnectionProps) ConnectionProps {
	var merged ConnectionProps
	for _, layer := range layers {
		if merged.Driver == "" {
			merged.Driver = layer.Driver
		}
		if merged.Host == "" {
			merged.Host = layer.Host
		}
		if merged.User == "" {
			merged.User = layer.User
		}
		if merged.Password == nil {
			merged.Password = layer.Password
		}
		if merged.Database == "" {
			merged.Database = layer.Database
		}
		if merged.Port == "" {
			merged.Port = layer.Port
		}
		if merged.Params == nil {
			merged.Params = layer.Params
		}
		if merged.ServiceName == nil {
			merged.ServiceName = layer.ServiceName
		}
		if merged.MaxIdleConns == nil {
			merged.MaxIdleConns = layer.MaxIdleConns
		}
		if merged.MaxOpenConns == nil {
			merged.MaxOpenConns = layer.MaxOpenConns
		}
		if merged.MaxIdleTime == nil {
			merged.MaxIdleTime = layer.MaxIdleTime
		}
		if merged.MaxLifeTime == nil {
			merged.MaxLifeTime = layer.MaxLifeTime
		}
	}
	return merged
}

func (props ConnectionProps) password() string {
	if props.Password == nil {
		return ""
	}
	return *props.Password
}

// DriverName is the database/sql driver name used for props.Driver
func (props ConnectionProps) DriverName() (string, error) {
	switch strings.ToLower(props.Driver) {
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported driver %q", props.Driver)
}

// DSN builds the data source name for props
func (props ConnectionProps) DSN() (string, error) {
	driverName, err := props.DriverName()
	if err != nil {
		return "", err
	}

	if props.Port != "" {
		if _, err := strconv.Atoi(props.Port); err != nil {
			return "", fmt.Errorf("invalid port %q", props.Port)
		}
	}

	switch driverName {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = props.User
		cfg.Passwd = props.password()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(props.Host, props.Port)
		cfg.DBName = props.Database
		cfg.ParseTime = true
		if len(props.Params) > 0 {
			cfg.Params = props.Params
		}
		return cfg.FormatDSN(), nil
	case "postgres", "pgx":
		query := url.Values{}
		for k, v := range props.Params {
			query.Set(k, v)
		}
		if query.Get("sslmode") == "" {
			query.Set("sslmode", "disable")
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(props.User, props.password()),
			Host:     net.JoinHostPort(props.Host, props.Port),
			Path:     "/" + props.Database,
			RawQuery: query.Encode(),
		}
		return u.String(), nil
	default:
		if props.Database == "" {
			return ":memory:", nil
		}
		return props.Database, nil
	}
}

func driverFor(driverName string) driver.Driver {
	switch driverName {
	case "mysql":
		return &mysql.MySQLDriver{}
	case "postgres":
		return &pq.Driver{}
	case "pgx":
		return stdlib.GetDefaultDriver()
	default:
		return &sqlite3.SQLiteDriver{}
	}
}

var (
	tracedMu      sync.Mutex
	tracedDrivers = map[string]bool{}
)

func registerTraced(driverName string) {
	tracedMu.Lock()
	defer tracedMu.Unlock()
	if tracedDrivers[driverName] {
		return
	}
	sqltrace.Register(driverName, driverFor(driverName))
	tracedDrivers[driverName] = true
}

/*
OpenConnection opens and pings a database connection for props. When a
ServiceName is set the connection is traced through dd-trace-go.
*/
func OpenConnection(ctx context.Context, props ConnectionProps) (*sql.DB, error) {
	driverName, err := props.DriverName()
	if err != nil {
		return nil, err
	}
	dsn, err := props.DSN()
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if props.ServiceName != nil {
		registerTraced(driverName)
		db, err = sqltrace.Open(driverName, dsn, sqltrace.WithServiceName(*props.ServiceName))
	} else {
		db, err = sql.Open(driverName, dsn)
	}
	if err != nil {
		return nil, err
	}

	if props.MaxIdleConns != nil {
		db.SetMaxIdleConns(*props.MaxIdleConns)
	}

	if props.MaxIdleTime != nil {
		db.SetConnMaxIdleTime(time.Duration(*props.MaxIdleTime) * time.Second)
	}

	if props.MaxLifeTime != nil {
		db.SetConnMaxLifetime(time.Duration(*props.MaxLifeTime) * time.Second)
	}

	if props.MaxOpenConns != nil {
		db.SetMaxOpenConns(*props.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
