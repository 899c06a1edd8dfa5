package main

import (
	"fmt"
	"math/big"
	"net/http"
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/ethrun/ethrun/core"
	"github.com/ethrun/ethrun/core/types"
)

// setLogLevel maps the CLI's 0-5 verbosity knob onto go-ethereum/log's
// slog-based levels and installs the resulting logger as the package
// default.
func setLogLevel(v int) {
	switch {
	case v <= 0:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelCrit, true)))
	case v == 1:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelError, true)))
	case v == 2:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelWarn, true)))
	case v == 3:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelInfo, true)))
	case v == 4:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelDebug, true)))
	default:
		ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelTrace, true)))
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "ethrun",
		Usage:   "run a scripted sequence of blocks through the execution engine",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML/JSON config file"},
			&cli.StringFlag{Name: "scenario", Usage: "path to the scenario JSON file (genesis + blocks)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "if set, serve Prometheus metrics on this address (e.g. :9001)"},
			&cli.IntFlag{Name: "verbosity", Value: 3, Usage: "log level 0-5 (0=silent, 5=trace)"},
		},
		Commands: []*cli.Command{
			runCommand(),
			genesisCommand(),
		},
	}
	return app
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "build and insert every block declared in the scenario file",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.ScenarioPath == "" {
				return cli.Exit("missing --scenario (or ETHRUN_SCENARIO / config file's \"scenario\" key)", 2)
			}
			setLogLevel(cfg.Verbosity)

			scenario, err := loadScenario(cfg.ScenarioPath)
			if err != nil {
				return err
			}

			var reg *prometheus.Registry
			if cfg.MetricsAddr != "" {
				reg = prometheus.NewRegistry()
				go serveMetrics(cfg.MetricsAddr, reg)
			}

			return runScenario(scenario, reg)
		},
	}
}

func genesisCommand() *cli.Command {
	return &cli.Command{
		Name:  "genesis",
		Usage: "print the resolved genesis block's hash and state root for a scenario file",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.ScenarioPath == "" {
				return cli.Exit("missing --scenario", 2)
			}
			scenario, err := loadScenario(cfg.ScenarioPath)
			if err != nil {
				return err
			}
			genesis := scenario.toGenesis()
			engine, err := core.NewEngine(genesis.Config, genesis, core.WithPrecompilesActivated())
			if err != nil {
				return fmt.Errorf("constructing engine: %w", err)
			}
			genesisBlock := engine.CurrentBlock()
			fmt.Printf("genesis hash: %s\n", genesisBlock.Hash().Hex())
			fmt.Printf("genesis root: %s\n", genesisBlock.Header().Root.Hex())
			return nil
		},
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ethlog.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		ethlog.Error("metrics server stopped", "err", err)
	}
}

// runScenario constructs an engine from the scenario's genesis, then for
// each block specification builds a candidate block on top of the current
// head and inserts it, printing a one-line summary per block.
func runScenario(scenario *scenarioFile, reg *prometheus.Registry) error {
	genesis := scenario.toGenesis()
	opts := []core.Option{core.WithPrecompilesActivated()}
	if reg != nil {
		opts = append(opts, core.WithMetrics(reg))
	}
	engine, err := core.NewEngine(genesis.Config, genesis, opts...)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	sub := engine.Events().Subscribe(core.EventBlockInserted, core.EventEngineError)
	defer sub.Unsubscribe()
	go func() {
		for evt := range sub.Chan() {
			if evt.Kind == core.EventEngineError {
				ethlog.Warn("engine error event", "err", evt.Data)
			}
		}
	}()

	for i, bspec := range scenario.Blocks {
		head := engine.CurrentBlock()

		txs := make([]*types.Transaction, 0, len(bspec.Transactions))
		for _, tspec := range bspec.Transactions {
			tx, err := tspec.toTransaction()
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			txs = append(txs, tx)
		}

		params := core.BuilderParams{
			ParentHash: head.Hash(),
			Number:     new(big.Int).SetUint64(head.Number() + 1),
			Coinbase:   types.HexToAddress(bspec.Coinbase),
			GasLimit:   bspec.GasLimit,
			Time:       bspec.Time,
			BaseFee:    bigOrNilBaseFee(bspec.BaseFee),
		}
		if params.GasLimit == 0 {
			params.GasLimit = head.GasLimit()
		}

		built, err := engine.BuildBlock(params, txs)
		if err != nil {
			return fmt.Errorf("building block %d: %w", i, err)
		}
		if len(built.Skipped) > 0 {
			ethlog.Warn("block build skipped transactions", "block", i, "skipped", len(built.Skipped))
		}

		result, err := engine.InsertBlock(built.Block)
		if err != nil {
			return fmt.Errorf("inserting block %d: %w", i, err)
		}

		fmt.Printf("block %d: hash=%s txs=%d gasUsed=%d\n",
			built.Block.Number(), built.Block.Hash().Hex(), len(built.Receipts), result.GasUsed)
	}
	return nil
}

func bigOrNilBaseFee(s string) *big.Int {
	if s == "" {
		return nil
	}
	return bigOrZero(s)
}
