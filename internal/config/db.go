package config

// Supported gorm engines.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite"
)

// DB holds the database configuration settings.
type DB struct {
	GormEngine string `validate:"oneof=postgres mysql sqlite"`
	Extras     string // appended to the DSN (query string for mysql, key=value pairs for postgres)
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	Path       string // sqlite database file, ":memory:" for tests
	Debug      bool   // log every SQL statement
}
