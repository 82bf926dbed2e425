package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/config"
	"github.com/minhle2209/tradepulse/internal/engine"
	"github.com/minhle2209/tradepulse/internal/exchange/bybit"
	"github.com/minhle2209/tradepulse/internal/exchange/paper"
	"github.com/minhle2209/tradepulse/internal/journal"
	"github.com/minhle2209/tradepulse/internal/logger"
	"github.com/minhle2209/tradepulse/internal/monitoring"
	"github.com/minhle2209/tradepulse/internal/risk"
	"github.com/minhle2209/tradepulse/pkg/types"
)

func main() {
	var (
		configFile = flag.String("config", "configs/engine.yaml", "Configuration file")
		envFile    = flag.String("env", ".env", "Environment file path")
		dryRun     = flag.Bool("dry-run", true, "Paper fills, no orders sent to the exchange")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		fmt.Printf("Warning: could not load env file (%v), using process environment\n", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	bybitClient := bybit.NewClient(bybit.Config{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Testnet:   cfg.Bybit.Testnet,
		Demo:      cfg.Bybit.Demo,
	})

	adapterCfg := bybit.DefaultAdapterConfig()
	adapterCfg.Category = cfg.Bybit.Category
	adapterCfg.Interval = bybit.KlineInterval(cfg.Bybit.Interval)
	adapter := bybit.NewAdapter(bybitClient, adapterCfg, log)

	account := risk.NewAccount(cfg.InitialCapital, cfg.Risk.DailyLossLimit, cfg.Risk.MaxDailyTrades)
	riskMgr := risk.NewManager(cfg.Risk, account, log)

	sessionJournal := journal.New()
	riskMgr.SetTradeRecorder(func(tr risk.ClosedTrade) {
		sessionJournal.Record(tr)
		monitoring.RecordTradePnL(tr.Instrument, tr.PnL)
	})

	var paperGateway *paper.Gateway
	var gateway engine.OrderGateway
	if *dryRun {
		paperGateway = paper.NewGateway(log)
		gateway = paperGateway
		log.Info().Msg("dry run: orders fill on paper at the last observed price")
	} else {
		gateway = adapter
		log.Warn().Str("environment", bybitClient.Environment()).Msg("orders will be sent to the exchange")
	}

	eng := engine.New(cfg.Engine, adapter, gateway, riskMgr, log)
	health := monitoring.NewHealthChecker()
	eng.SetHealthChecker(health)

	if paperGateway != nil {
		paperGateway.SetFillHandlers(eng.HandleFill, eng.HandleFillFailed)
	} else {
		adapter.SetFillHandlers(eng.HandleFill, eng.HandleFillFailed)
	}

	if cfg.MonitorAddr != "" {
		go serveMonitoring(cfg.MonitorAddr, health, log)
	}

	log.Info().
		Strs("instruments", cfg.Instruments).
		Dur("poll_interval", cfg.PollInterval).
		Dur("tick_poll_interval", cfg.TickPollInterval).
		Str("session", cfg.Engine.SessionStart+"-"+cfg.Engine.SessionEnd).
		Float64("capital", cfg.InitialCapital).
		Msg("engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go run(ctx, cfg, eng, adapter, paperGateway, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")
	cancel()

	finish(cfg, sessionJournal, account, log)
}

// run drives the two polling cadences until the context ends.
func run(ctx context.Context, cfg *config.Config, eng *engine.Engine, adapter *bybit.Adapter, paperGateway *paper.Gateway, log zerolog.Logger) {
	barTicker := time.NewTicker(cfg.PollInterval)
	tickTicker := time.NewTicker(cfg.TickPollInterval)
	defer barTicker.Stop()
	defer tickTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickTicker.C:
			for _, instrument := range cfg.Instruments {
				tick, err := adapter.PollTick(ctx, instrument)
				if err != nil {
					log.Debug().Str("instrument", instrument).Err(err).Msg("tick poll failed")
					continue
				}
				if paperGateway != nil {
					paperGateway.MarkPrice(instrument, tick.Price)
				}
				if _, err := eng.OnTick(ctx, instrument, tick); err != nil {
					log.Error().Str("instrument", instrument).Err(err).Msg("tick event failed")
				}
			}
		case <-barTicker.C:
			bars := collectBars(ctx, cfg.Instruments, adapter, paperGateway, log)
			for _, result := range eng.OnBarBatch(ctx, bars) {
				if result.Err != nil {
					log.Error().Str("instrument", result.Instrument).Err(result.Err).Msg("bar event failed")
				}
			}
		}
	}
}

// collectBars fetches the latest closed bar per instrument. Instruments
// whose fetch fails are left out and retried on the next poll.
func collectBars(ctx context.Context, instruments []string, adapter *bybit.Adapter, paperGateway *paper.Gateway, log zerolog.Logger) map[string]types.OHLCV {
	bars := make(map[string]types.OHLCV, len(instruments))
	for _, instrument := range instruments {
		series, err := adapter.GetPriceSeries(ctx, instrument, types.GranularityBar, 2)
		if err != nil {
			log.Debug().Str("instrument", instrument).Err(err).Msg("bar poll failed")
			continue
		}
		bar, ok := series.Last()
		if !ok {
			continue
		}
		if paperGateway != nil {
			paperGateway.MarkPrice(instrument, bar.Close)
		}
		bars[instrument] = bar
	}
	return bars
}

func serveMonitoring(addr string, health *monitoring.HealthChecker, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/healthz", health)
	log.Info().Str("addr", addr).Msg("monitoring endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("monitoring endpoint stopped")
	}
}

// finish prints the session summary and exports the journal.
func finish(cfg *config.Config, sessionJournal *journal.Journal, account *risk.Account, log zerolog.Logger) {
	sessionJournal.RenderConsole(os.Stdout)

	snap := account.Snapshot()
	log.Info().
		Float64("available_capital", snap.AvailableCapital).
		Float64("realized_pnl", snap.RealizedPnLToday).
		Int("trades", snap.TradesToday).
		Bool("circuit_breaker", snap.Halted).
		Msg("session closed")

	if cfg.JournalPath != "" {
		if err := sessionJournal.WriteXLSX(cfg.JournalPath); err != nil {
			log.Error().Err(err).Str("path", cfg.JournalPath).Msg("journal export failed")
		} else {
			log.Info().Str("path", cfg.JournalPath).Msg("journal exported")
		}
	}
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
