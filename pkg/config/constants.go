package config

const (
	EnvPrefix = "STOREKART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "STOREKART_DB_DSN"
	EnvDBHost = "STOREKART_DB_HOST"
	EnvDBUser = "STOREKART_DB_USER"
	EnvDBName = "STOREKART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
