package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"cashledger/config"
	"cashledger/db"
	"cashledger/faucet"
	"cashledger/gate"
	"cashledger/jsonrpc"
	"cashledger/ledger"
	"cashledger/logx"
	"cashledger/monitoring"
	"cashledger/store"
)

const (
	nodeConfigPath    = "config/config.ini"
	genesisConfigPath = "config/genesis.yml"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cash ledger node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runNode() error {
	nodeCfg, err := config.LoadNodeConfig(nodeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load node config: %w", err)
	}
	genesisCfg, err := config.LoadGenesisConfig(genesisConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load genesis config: %w", err)
	}

	provider, err := openProvider(nodeCfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logx.Error("NODE", "Failed to close db provider:", err.Error())
		}
	}()

	accounts, err := store.NewCashAccountStore(provider)
	if err != nil {
		return err
	}
	requests, err := store.NewPendingRequestStore(provider)
	if err != nil {
		return err
	}

	treasury, err := faucet.NewTreasury(genesisCfg.Treasury.Owner, accounts)
	if err != nil {
		return fmt.Errorf("failed to set up treasury: %w", err)
	}
	treasuryBalance, err := config.ParseAmount(genesisCfg.Treasury.Amount)
	if err != nil {
		return err
	}
	if err := treasury.Seed(treasuryBalance); err != nil {
		return fmt.Errorf("failed to seed treasury: %w", err)
	}

	ld := ledger.NewLedger(accounts, requests, treasury, db.NewTxManager(provider))

	genesisAccounts := make([]ledger.GenesisAccount, 0, len(genesisCfg.Prefunded))
	for _, p := range genesisCfg.Prefunded {
		balance, err := config.ParseAmount(p.Amount)
		if err != nil {
			return err
		}
		genesisAccounts = append(genesisAccounts, ledger.GenesisAccount{Owner: p.Owner, Balance: balance})
	}
	if err := ld.CreateAccountsFromGenesis(genesisAccounts); err != nil {
		return fmt.Errorf("failed to create genesis accounts: %w", err)
	}

	rpcServer := jsonrpc.NewServer(nodeCfg.RPCAddr, gate.New(ld))
	rpcServer.Start()
	monitoring.StartMetricsServer(nodeCfg.MetricsAddr)

	logx.Info("NODE", "Cash ledger node is up")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logx.Info("NODE", "Shutting down")
	return nil
}

func openProvider(cfg *config.NodeConfig) (db.Provider, error) {
	switch cfg.DBBackend {
	case "memory":
		return db.NewMemoryProvider(), nil
	case "leveldb", "":
		currentDir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir := cfg.DBPath
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(currentDir, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return db.NewLevelDBProvider(dir)
	default:
		return nil, fmt.Errorf("unknown db backend %q", cfg.DBBackend)
	}
}
