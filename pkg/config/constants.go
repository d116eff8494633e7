package config

// EnvPrefix is passed to envconfig; every variable already carries the
// LOOMLINE_ prefix explicitly, so the processing prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LOOMLINE_DB_DSN"
	EnvDBHost = "LOOMLINE_DB_HOST"
	EnvDBUser = "LOOMLINE_DB_USER"
	EnvDBName = "LOOMLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
