// Package config loads and validates the engine configuration from a YAML
// file plus environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/minhle2209/tradepulse/internal/detector"
	"github.com/minhle2209/tradepulse/internal/engine"
	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/internal/fusion"
	"github.com/minhle2209/tradepulse/internal/logger"
	"github.com/minhle2209/tradepulse/internal/risk"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// Config is the resolved runtime configuration.
type Config struct {
	Instruments      []string
	PollInterval     time.Duration // bar poll cadence
	TickPollInterval time.Duration // ticker poll cadence
	InitialCapital   float64
	JournalPath      string // empty disables the Excel export
	MonitorAddr      string // empty disables the metrics endpoint

	Log    logger.Config
	Engine engine.Config
	Risk   risk.Config
	Bybit  BybitSection
}

// BybitSection selects the exchange environment.
type BybitSection struct {
	Category string
	Interval string
	Testnet  bool
	Demo     bool
}

// file mirrors the YAML schema. Durations accept Go duration strings.
type file struct {
	Instruments      []string      `mapstructure:"instruments"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	TickPollInterval time.Duration `mapstructure:"tick_poll_interval"`
	InitialCapital   float64       `mapstructure:"initial_capital"`
	JournalPath      string        `mapstructure:"journal_path"`
	MonitorAddr      string        `mapstructure:"monitor_addr"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Output string `mapstructure:"output"`
	} `mapstructure:"log"`

	Session struct {
		Start string `mapstructure:"start"`
		End   string `mapstructure:"end"`
	} `mapstructure:"session"`

	Detectors struct {
		PeakValley struct {
			Window     int     `mapstructure:"window"`
			RSIPeriod  int     `mapstructure:"rsi_period"`
			MAPeriod   int     `mapstructure:"ma_period"`
			Oversold   float64 `mapstructure:"oversold"`
			Overbought float64 `mapstructure:"overbought"`
		} `mapstructure:"peak_valley"`
		Momentum struct {
			BucketWidth     time.Duration `mapstructure:"bucket_width"`
			Threshold       float64       `mapstructure:"threshold"`
			SmoothingPeriod int           `mapstructure:"smoothing_period"`
			Cooldown        time.Duration `mapstructure:"cooldown"`
		} `mapstructure:"momentum"`
		BarLookback  int           `mapstructure:"bar_lookback"`
		TickLookback time.Duration `mapstructure:"tick_lookback"`
	} `mapstructure:"detectors"`

	Fusion struct {
		BarWeight    float64       `mapstructure:"bar_weight"`
		TickWeight   float64       `mapstructure:"tick_weight"`
		BarHalfLife  time.Duration `mapstructure:"bar_half_life"`
		TickHalfLife time.Duration `mapstructure:"tick_half_life"`
		Threshold    float64       `mapstructure:"threshold"`
	} `mapstructure:"fusion"`

	Risk struct {
		RiskPctPerTrade  float64 `mapstructure:"risk_pct_per_trade"`
		MaxPositionValue float64 `mapstructure:"max_position_value"`
		StopPct          float64 `mapstructure:"stop_pct"`
		TargetPct        float64 `mapstructure:"target_pct"`
		LotSize          float64 `mapstructure:"lot_size"`
		DailyLossLimit   float64 `mapstructure:"daily_loss_limit"`
		MaxDailyTrades   int     `mapstructure:"max_daily_trades"`
		AllowShort       bool    `mapstructure:"allow_short"`
		TrailingArmPct   float64 `mapstructure:"trailing_arm_pct"`
		TrailingStopPct  float64 `mapstructure:"trailing_stop_pct"`
	} `mapstructure:"risk"`

	Bybit struct {
		Category string `mapstructure:"category"`
		Interval string `mapstructure:"interval"`
		Testnet  bool   `mapstructure:"testnet"`
		Demo     bool   `mapstructure:"demo"`
	} `mapstructure:"bybit"`
}

// Load reads the configuration file, applies defaults and environment
// overrides (TRADEPULSE_ prefix) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADEPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInvalidParameter, "config", "read")
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInvalidParameter, "config", "unmarshal")
	}

	cfg := resolve(f)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_interval", "1m")
	v.SetDefault("tick_poll_interval", "1s")
	v.SetDefault("initial_capital", 1_000_000)
	v.SetDefault("monitor_addr", "")
	v.SetDefault("journal_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("session.start", "09:15")
	v.SetDefault("session.end", "15:30")

	pv := detector.DefaultPeakValleyConfig()
	v.SetDefault("detectors.peak_valley.window", pv.Window)
	v.SetDefault("detectors.peak_valley.rsi_period", pv.RSIPeriod)
	v.SetDefault("detectors.peak_valley.ma_period", pv.MAPeriod)
	v.SetDefault("detectors.peak_valley.oversold", pv.Oversold)
	v.SetDefault("detectors.peak_valley.overbought", pv.Overbought)

	mo := detector.DefaultMomentumConfig()
	v.SetDefault("detectors.momentum.bucket_width", mo.BucketWidth.String())
	v.SetDefault("detectors.momentum.threshold", mo.Threshold)
	v.SetDefault("detectors.momentum.smoothing_period", mo.SmoothingPeriod)
	v.SetDefault("detectors.momentum.cooldown", mo.Cooldown.String())

	ec := engine.DefaultConfig()
	v.SetDefault("detectors.bar_lookback", ec.BarLookback)
	v.SetDefault("detectors.tick_lookback", ec.TickLookback.String())

	fu := fusion.DefaultConfig()
	v.SetDefault("fusion.bar_weight", fu.Weights[types.TimeframeBar])
	v.SetDefault("fusion.tick_weight", fu.Weights[types.TimeframeTick])
	v.SetDefault("fusion.bar_half_life", fu.HalfLives[types.TimeframeBar].String())
	v.SetDefault("fusion.tick_half_life", fu.HalfLives[types.TimeframeTick].String())
	v.SetDefault("fusion.threshold", fu.Threshold)

	rc := risk.DefaultConfig()
	v.SetDefault("risk.risk_pct_per_trade", rc.RiskPctPerTrade)
	v.SetDefault("risk.max_position_value", rc.MaxPositionValue)
	v.SetDefault("risk.stop_pct", rc.StopPct)
	v.SetDefault("risk.target_pct", rc.TargetPct)
	v.SetDefault("risk.lot_size", rc.LotSize)
	v.SetDefault("risk.daily_loss_limit", rc.DailyLossLimit)
	v.SetDefault("risk.max_daily_trades", rc.MaxDailyTrades)
	v.SetDefault("risk.allow_short", rc.AllowShort)
	v.SetDefault("risk.trailing_arm_pct", rc.TrailingArmPct)
	v.SetDefault("risk.trailing_stop_pct", rc.TrailingStopPct)

	v.SetDefault("bybit.category", "spot")
	v.SetDefault("bybit.interval", "1")
	v.SetDefault("bybit.testnet", false)
	v.SetDefault("bybit.demo", true)
}

func resolve(f file) *Config {
	return &Config{
		Instruments:      f.Instruments,
		PollInterval:     f.PollInterval,
		TickPollInterval: f.TickPollInterval,
		InitialCapital:   f.InitialCapital,
		JournalPath:      f.JournalPath,
		MonitorAddr:      f.MonitorAddr,
		Log: logger.Config{
			Level:  f.Log.Level,
			Format: f.Log.Format,
			Output: f.Log.Output,
		},
		Engine: engine.Config{
			BarLookback:  f.Detectors.BarLookback,
			TickLookback: f.Detectors.TickLookback,
			SessionStart: f.Session.Start,
			SessionEnd:   f.Session.End,
			PeakValley: detector.PeakValleyConfig{
				Window:     f.Detectors.PeakValley.Window,
				RSIPeriod:  f.Detectors.PeakValley.RSIPeriod,
				MAPeriod:   f.Detectors.PeakValley.MAPeriod,
				Oversold:   f.Detectors.PeakValley.Oversold,
				Overbought: f.Detectors.PeakValley.Overbought,
			},
			Momentum: detector.MomentumConfig{
				BucketWidth:     f.Detectors.Momentum.BucketWidth,
				Threshold:       f.Detectors.Momentum.Threshold,
				SmoothingPeriod: f.Detectors.Momentum.SmoothingPeriod,
				Cooldown:        f.Detectors.Momentum.Cooldown,
			},
			Fusion: fusion.Config{
				Weights: map[types.Timeframe]float64{
					types.TimeframeBar:  f.Fusion.BarWeight,
					types.TimeframeTick: f.Fusion.TickWeight,
				},
				HalfLives: map[types.Timeframe]time.Duration{
					types.TimeframeBar:  f.Fusion.BarHalfLife,
					types.TimeframeTick: f.Fusion.TickHalfLife,
				},
				Threshold: f.Fusion.Threshold,
			},
		},
		Risk: risk.Config{
			RiskPctPerTrade:  f.Risk.RiskPctPerTrade,
			MaxPositionValue: f.Risk.MaxPositionValue,
			StopPct:          f.Risk.StopPct,
			TargetPct:        f.Risk.TargetPct,
			LotSize:          f.Risk.LotSize,
			DailyLossLimit:   f.Risk.DailyLossLimit,
			MaxDailyTrades:   f.Risk.MaxDailyTrades,
			AllowShort:       f.Risk.AllowShort,
			TrailingArmPct:   f.Risk.TrailingArmPct,
			TrailingStopPct:  f.Risk.TrailingStopPct,
		},
		Bybit: BybitSection{
			Category: f.Bybit.Category,
			Interval: f.Bybit.Interval,
			Testnet:  f.Bybit.Testnet,
			Demo:     f.Bybit.Demo,
		},
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.NewInvalidParameter("config", "at least one instrument is required")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, in := range c.Instruments {
		if in == "" {
			return errors.NewInvalidParameter("config", "instrument symbols must not be empty")
		}
		if seen[in] {
			return errors.NewInvalidParameter("config", fmt.Sprintf("duplicate instrument %q", in))
		}
		seen[in] = true
	}
	if c.PollInterval <= 0 || c.TickPollInterval <= 0 {
		return errors.NewInvalidParameter("config", "poll intervals must be positive")
	}
	if c.InitialCapital <= 0 {
		return errors.NewInvalidParameter("config", "initial capital must be positive")
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return c.Risk.Validate()
}
