package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified
// keys so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "GLOWCART_DB_DSN"
	EnvDBHost = "GLOWCART_DB_HOST"
	EnvDBUser = "GLOWCART_DB_USER"
	EnvDBName = "GLOWCART_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
