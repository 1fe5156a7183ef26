package config

// TreasuryConfig seeds the external funding source deposits draw from
type TreasuryConfig struct {
	Owner  string `yaml:"owner"`
	Amount string `yaml:"amount"` // decimal string
}

// PrefundedAccount is a cash account created with a balance at genesis
type PrefundedAccount struct {
	Owner  string `yaml:"owner"`
	Amount string `yaml:"amount"`
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	Treasury  TreasuryConfig     `yaml:"treasury"`
	Prefunded []PrefundedAccount `yaml:"prefunded"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Config GenesisConfig `yaml:"config"`
}

// NodeConfig is the node-local configuration from config.ini
type NodeConfig struct {
	DBBackend   string `ini:"db_backend"` // leveldb | memory
	DBPath      string `ini:"db_path"`
	RPCAddr     string `ini:"rpc_addr"`
	MetricsAddr string `ini:"metrics_addr"`
}
