package warehouse

import (
	"net/url"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"ballpark/internal/domain"
)

const awkwardPassword = `p@ss word'"/?#=`

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	driver, dsn, err := driverAndDSN(domain.WarehouseConnection{
		Driver:   domain.WarehouseDriverPostgres,
		Host:     "db.internal",
		Database: "dev_day",
		Schema:   "public",
		Username: "etl user",
		Password: awkwardPassword,
	})
	require.NoError(t, err)
	require.Equal(t, "postgres", driver)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	require.Equal(t, "postgres", u.Scheme)
	require.Equal(t, "db.internal:5432", u.Host)
	require.Equal(t, "/dev_day", u.Path)
	require.Equal(t, "etl user", u.User.Username())
	pw, ok := u.User.Password()
	require.True(t, ok)
	require.Equal(t, awkwardPassword, pw)
	require.Equal(t, "disable", u.Query().Get("sslmode"))
	require.Equal(t, "public", u.Query().Get("search_path"))
}

func TestPostgresDSN_NoPassword(t *testing.T) {
	dsn := buildPostgresDSN(domain.WarehouseConnection{Host: "localhost", Port: 6543, Username: "etl", SSLMode: "require"})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	require.Equal(t, "localhost:6543", u.Host)
	_, ok := u.User.Password()
	require.False(t, ok)
	require.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestMySQLDSN_EscapesCredentials(t *testing.T) {
	dsn := buildMySQLDSN(domain.WarehouseConnection{
		Host:     "db.internal",
		Database: "dev_day",
		Username: "etl",
		Password: awkwardPassword,
		SSLMode:  "require",
	})

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "etl", cfg.User)
	require.Equal(t, awkwardPassword, cfg.Passwd)
	require.Equal(t, "db.internal:3306", cfg.Addr)
	require.Equal(t, "dev_day", cfg.DBName)
	require.True(t, cfg.ParseTime)
	require.Equal(t, "true", cfg.TLSConfig)
}
