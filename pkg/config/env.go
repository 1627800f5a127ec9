package config

// EnvPrefix is the envconfig prefix shared by every iTicket process.
const EnvPrefix = "ITICKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ITICKET_DB_DSN"
	EnvDBHost = "ITICKET_DB_HOST"
	EnvDBUser = "ITICKET_DB_USER"
	EnvDBName = "ITICKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
