package config

type StorageConfig interface {
	GetDataFolder() string
	GetStoreKey() string
	GetSyncedLedgerSize() int
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetDataFolder() string {
	return GetEnv("POS_DATA_FOLDER", "./data")
}

// GetStoreKey returns the hex encoded at-rest sealing key; empty stores values unsealed
func (Storage) GetStoreKey() string {
	return GetEnv("POS_STORE_KEY", "")
}

func (Storage) GetSyncedLedgerSize() int {
	return GetIntEnv("POS_SYNCED_LEDGER_SIZE", 500)
}
