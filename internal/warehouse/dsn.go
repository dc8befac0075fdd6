package warehouse

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/snowflakedb/gosnowflake"

	"ballpark/internal/domain"

	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// driverAndDSN maps a connection onto a database/sql driver name and DSN.
func driverAndDSN(conn domain.WarehouseConnection) (string, string, error) {
	switch conn.Driver {
	case domain.WarehouseDriverSnowflake:
		dsn, err := buildSnowflakeDSN(conn)
		return "snowflake", dsn, err
	case domain.WarehouseDriverPostgres:
		return "postgres", buildPostgresDSN(conn), nil
	case domain.WarehouseDriverMySQL:
		return "mysql", buildMySQLDSN(conn), nil
	case domain.WarehouseDriverSQLite:
		if conn.Host == "" {
			return "", "", fmt.Errorf("sqlite: a file path was not specified")
		}
		return "sqlite", conn.Host + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	case domain.WarehouseDriverLibSQL:
		dsn, err := buildLibSQLDSN(conn)
		return "libsql", dsn, err
	default:
		return "", "", fmt.Errorf("unsupported warehouse driver: %q", conn.Driver)
	}
}

func buildSnowflakeDSN(conn domain.WarehouseConnection) (string, error) {
	if conn.Account == "" {
		return "", fmt.Errorf("snowflake: account is required")
	}
	cfg := &gosnowflake.Config{
		Account:   conn.Account,
		User:      conn.Username,
		Password:  conn.Password,
		Database:  conn.Database,
		Schema:    conn.Schema,
		Warehouse: conn.Warehouse,
		Role:      conn.Role,
	}
	if conn.Host != "" {
		cfg.Host = conn.Host
	}
	if conn.Port != 0 {
		cfg.Port = conn.Port
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return "", fmt.Errorf("snowflake dsn: %w", err)
	}
	return dsn, nil
}

// buildPostgresDSN returns a postgres:// URL so credentials are escaped.
func buildPostgresDSN(conn domain.WarehouseConnection) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if conn.Schema != "" {
		q.Set("search_path", conn.Schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(conn.Host, strconv.Itoa(port)),
		Path:     "/" + conn.Database,
		RawQuery: q.Encode(),
	}
	if conn.Password != "" {
		u.User = url.UserPassword(conn.Username, conn.Password)
	} else if conn.Username != "" {
		u.User = url.User(conn.Username)
	}
	return u.String()
}

func buildMySQLDSN(conn domain.WarehouseConnection) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

// buildLibSQLDSN accepts a libsql://, https:// or wss:// URL in Host.
func buildLibSQLDSN(conn domain.WarehouseConnection) (string, error) {
	if conn.Host == "" {
		return "", fmt.Errorf("libsql: a url was not specified")
	}
	u, err := url.Parse(conn.Host)
	if err != nil {
		return "", fmt.Errorf("libsql url: %w", err)
	}
	if conn.AuthToken != "" {
		q := u.Query()
		q.Set("authToken", conn.AuthToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
