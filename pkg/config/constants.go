package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "PETALROUTE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PETALROUTE_DB_DSN"
	EnvDBHost = "PETALROUTE_DB_HOST"
	EnvDBUser = "PETALROUTE_DB_USER"
	EnvDBName = "PETALROUTE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
