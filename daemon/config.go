package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDBFolder   = "./db"
	defaultLogDir     = "./logs"
	defaultLogFile    = "watchtower.log"
	defaultLogLevel   = "info"
	defaultMaxLogSize = 10
	defaultMaxLogs    = 3
)

// config mirrors the flags a single watchtower process accepts. Each
// enabled network gets its own store, chain client, and monitor;
// --enable-regtest is the only network whose upstream URL is
// configurable, since bitcoin/testnet/tape default to fixed public
// indexers.
type config struct {
	Port             int    `long:"port" description:"HTTP listen port (0 = random free port)"`
	DBFolder         string `long:"db-folder" description:"directory holding the per-network sqlite stores"`
	DisableBitcoin   bool   `long:"disable-bitcoin" description:"disable the bitcoin mainnet network"`
	DisableTestnet   bool   `long:"disable-testnet" description:"disable the testnet network"`
	DisableTape      bool   `long:"disable-tape" description:"disable the tape network"`
	EnableRegtest    string `long:"enable-regtest" description:"enable a regtest network against the given Esplora-style base URL"`
	WithCommitments  bool   `long:"with-commitments" description:"require and verify commitment authorization on registration"`
	LogLevel         string `long:"log-level" description:"logging level for all subsystems (trace, debug, info, warn, error, critical)"`
	LogDir           string `long:"log-dir" description:"directory for the rotating log file"`
}

// defaultConfig returns a config populated with defaults, before flag
// parsing overrides them.
func defaultConfig() config {
	return config{
		Port:     0,
		DBFolder: defaultDBFolder,
		LogLevel: defaultLogLevel,
		LogDir:   defaultLogDir,
	}
}

// loadConfig parses args into a config, applies defaults, and validates
// that at least one network is enabled. It returns flags.ErrHelp
// unmodified when -h/--help was requested, so the caller can special-case
// a clean exit.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.DisableBitcoin && cfg.DisableTestnet && cfg.DisableTape && cfg.EnableRegtest == "" {
		return nil, errors.New("at least one network must be enabled")
	}

	if err := os.MkdirAll(cfg.DBFolder, 0700); err != nil {
		return nil, fmt.Errorf("create db folder: %w", err)
	}

	return &cfg, nil
}

// logFilePath returns the full path of the rotating log file under
// cfg.LogDir.
func (cfg *config) logFilePath() string {
	return filepath.Join(cfg.LogDir, defaultLogFile)
}

// enabledNetworks returns the network identifiers this config turns on, in
// the order bitcoin, testnet, tape, regtest. The regtest base URL is read
// from cfg.EnableRegtest, not returned here.
func (cfg *config) enabledNetworks() []string {
	var networks []string
	if !cfg.DisableBitcoin {
		networks = append(networks, "bitcoin")
	}
	if !cfg.DisableTestnet {
		networks = append(networks, "testnet")
	}
	if !cfg.DisableTape {
		networks = append(networks, "tape")
	}
	if cfg.EnableRegtest != "" {
		networks = append(networks, "regtest")
	}
	return networks
}
