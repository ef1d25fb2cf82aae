package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spotrisk/config"
	"spotrisk/engine"
	"spotrisk/exchange"
	"spotrisk/exit"
	"spotrisk/gateway"
	"spotrisk/journal"
	"spotrisk/ledger"
	"spotrisk/market"
	"spotrisk/metrics"
	"spotrisk/pkg/ratelimit"
	"spotrisk/risk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the risk engine from a config file",
	Long: `Run the position risk engine using settings from a configuration file.

In simulated mode the engine executes against a built-in paper exchange.
Persisted positions are restored from the state file and managed from the
first tick. Stop with Ctrl-C; state is flushed on the way out.

Example:
  spotrisk run --config config.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

// nopSignals never produces a signal: the run command manages persisted
// positions; entry signals arrive only when a strategy process is wired in.
type nopSignals struct{}

func (nopSignals) Next() (market.TradeSignal, bool) { return market.TradeSignal{}, false }

func buildJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Backend {
	case "csv":
		return journal.NewCSV(cfg.Path)
	case "sqlite":
		return journal.NewSQLite(cfg.Path)
	default:
		return journal.Nop{}, nil
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.IsLiveMode {
		return errors.New("live mode requires an exchange connector; this build ships the paper exchange only")
	}

	jrnl, err := buildJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jrnl.Close()

	store := ledger.NewStore(cfg.Ledger.StatePath)
	book := ledger.New(store, log, cfg.Ledger.InitialCashUSD, cfg.Ledger.OrderHistoryCap, cfg.IsLiveMode)
	if err := book.Load(); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	paper := exchange.NewPaperClient(cfg.Exchange.TakerFeePct)
	limiter := ratelimit.PerWindow(cfg.Exchange.RequestsPerMin, time.Minute)
	client := exchange.NewBreaker(paper, limiter, log,
		cfg.Exchange.BreakerThreshold,
		time.Duration(cfg.Exchange.BreakerCooldownS)*time.Second,
		time.Duration(cfg.Exchange.RequestTimeoutMS)*time.Millisecond,
		exchange.WithStateHook(metrics.SetBreakerState))

	gw := gateway.New(cfg, client, book, jrnl, log)
	exits := exit.NewEngine(cfg.Exit, cfg.Exchange.TakerFeePct, log)
	sizer := risk.NewSizer(cfg.Risk)
	governor := risk.NewGovernor(cfg.Risk, log)

	eng, err := engine.New(cfg, client, book, gw, exits, sizer, governor, nopSignals{}, jrnl, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.Engine.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Engine.MetricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("metrics listening", zap.String("addr", cfg.Engine.MetricsAddr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = eng.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("shutdown requested, state flushed")
		return nil
	case errors.Is(err, engine.ErrHalted):
		log.Error("engine halted by risk governor; restart requires operator action")
		return err
	default:
		return err
	}
}
