package domain

// WarehouseDriver represents the type of warehouse engine behind the loader.
type WarehouseDriver string

const (
	WarehouseDriverSnowflake WarehouseDriver = "snowflake"
	WarehouseDriverPostgres  WarehouseDriver = "postgres"
	WarehouseDriverMySQL     WarehouseDriver = "mysql"
	WarehouseDriverSQLite    WarehouseDriver = "sqlite"
	WarehouseDriverLibSQL    WarehouseDriver = "libsql"
)

// WarehouseConnection holds everything needed to open the target warehouse.
// It is passed explicitly at construction; nothing is resolved from a global registry.
// The password may come from the config file, the environment, or the SecretStore.
type WarehouseConnection struct {
	Driver    WarehouseDriver `json:"driver"`
	Host      string          `json:"host"`     // hostname, or file path for sqlite, or URL for libsql
	Port      int             `json:"port"`     // 0 picks the driver default
	Database  string          `json:"database"` // db name, empty for sqlite
	Schema    string          `json:"schema"`   // snowflake/postgres schema, optional
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	SSLMode   string          `json:"ssl_mode"`
	Account   string          `json:"account"`    // snowflake account identifier
	Warehouse string          `json:"warehouse"`  // snowflake virtual warehouse
	Role      string          `json:"role"`       // snowflake role
	AuthToken string          `json:"auth_token"` // libsql auth token
}

// ResourceName returns the "<database>/<schema>" prefix used for lineage resource ids.
func (c WarehouseConnection) ResourceName() string {
	switch {
	case c.Database != "" && c.Schema != "":
		return c.Database + "/" + c.Schema
	case c.Database != "":
		return c.Database
	default:
		return "default"
	}
}
