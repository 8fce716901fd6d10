package config

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	SyncConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars
	API
	Session
	Sync
	Storage
}

func New() Config {
	return mainConfig{}
}
