package cnst

const (
	ApiServerYaml = "apiserver.yaml"
	ClientYaml    = "client.yaml"
)

const (
	DatabaseTypePostgres = "postgres"
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypeSQLite   = "sqlite"
)
