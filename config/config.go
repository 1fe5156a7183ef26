package config

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"cashledger/logx"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open genesis config %s: %w", path, err)
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("could not decode genesis config %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis config: treasury owner %s, %d prefunded accounts",
		cfgFile.Config.Treasury.Owner, len(cfgFile.Config.Prefunded)))
	return &cfgFile.Config, nil
}

// LoadNodeConfig reads and parses the node config.ini file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load node config %s: %w", path, err)
	}

	cfg := &NodeConfig{
		DBBackend:   "leveldb",
		DBPath:      "./data/cashledger",
		RPCAddr:     ":8899",
		MetricsAddr: ":9100",
	}
	if err := iniFile.Section("node").MapTo(cfg); err != nil {
		return nil, fmt.Errorf("could not map node config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseAmount converts a decimal config amount into a uint256 value
func ParseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid config amount %q: %w", s, err)
	}
	return amount, nil
}
