package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"autoRepay/internal/model"
)

// Decay policy names.
const (
	DecayCompounding = "compounding"
	DecayFlat        = "flat"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Network  string
	RPCURL   string
	LogLevel string

	AddressesProvider common.Address
	DataProvider      common.Address
	Adapter           common.Address
	Router            common.Address
	Multicall         common.Address

	Assets    model.AssetSet
	Hubs      []common.Address
	Overrides []model.PathOverride

	StartBlock   uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration

	SlippageBps     int64
	FeeBps          int64
	FlashPremiumBps int64
	Decay           string
	MaxAttempts     int
	DryRunRetries   int
	DryRunDelay     time.Duration
	GasLimit        uint64
	PrivateKey      string

	PollInterval time.Duration
	Concurrency  int
	RiskTopN     int
	RPCRate      float64
	RPCTimeout   time.Duration

	StateFile    string
	OutcomesFile string
	PGDSN        string
	MetricsAddr  string
}

type assetEntry struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

type overrideEntry struct {
	From            string   `mapstructure:"from"`
	To              string   `mapstructure:"to"`
	Path            []string `mapstructure:"path"`
	UseATokenAsFrom bool     `mapstructure:"use-atoken-as-from"`
	UseATokenAsTo   bool     `mapstructure:"use-atoken-as-to"`
}

// Load merges .env, config file, environment variables, and flags into Config.
// Values not set anywhere fall back to the selected network preset.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AUTOREPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", NetworkCelo)
	v.SetDefault("log-level", "info")
	v.SetDefault("batch-size", uint64(5000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("slippage-bps", int64(100))
	v.SetDefault("fee-bps", int64(10))
	v.SetDefault("flash-premium-bps", int64(9))
	v.SetDefault("decay", DecayCompounding)
	v.SetDefault("max-attempts", 4)
	v.SetDefault("dry-run-retries", 5)
	v.SetDefault("dry-run-delay", 100*time.Millisecond)
	v.SetDefault("gas-limit", uint64(2_000_000))
	v.SetDefault("poll-interval", 60*time.Second)
	v.SetDefault("concurrency", 20)
	v.SetDefault("risk-top-n", 3)
	v.SetDefault("rpc-rate", float64(0))
	v.SetDefault("rpc-timeout", time.Duration(0))
	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("outcomes-file", "./data/outcomes.jsonl")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	name := strings.ToLower(strings.TrimSpace(v.GetString("network")))
	preset, ok := Presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown network %q", name)
	}

	cfg := Config{
		Network:         name,
		RPCURL:          stringOr(v, "rpc", preset.RPCURL),
		LogLevel:        v.GetString("log-level"),
		StartBlock:      preset.StartBlock,
		BatchSize:       v.GetUint64("batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		SlippageBps:     v.GetInt64("slippage-bps"),
		FeeBps:          v.GetInt64("fee-bps"),
		FlashPremiumBps: v.GetInt64("flash-premium-bps"),
		Decay:           strings.ToLower(v.GetString("decay")),
		MaxAttempts:     v.GetInt("max-attempts"),
		DryRunRetries:   v.GetInt("dry-run-retries"),
		DryRunDelay:     v.GetDuration("dry-run-delay"),
		GasLimit:        v.GetUint64("gas-limit"),
		PrivateKey:      v.GetString("private-key"),
		PollInterval:    v.GetDuration("poll-interval"),
		Concurrency:     v.GetInt("concurrency"),
		RiskTopN:        v.GetInt("risk-top-n"),
		RPCRate:         v.GetFloat64("rpc-rate"),
		RPCTimeout:      v.GetDuration("rpc-timeout"),
		StateFile:       v.GetString("state-file"),
		OutcomesFile:    v.GetString("outcomes-file"),
		PGDSN:           v.GetString("pg-dsn"),
		MetricsAddr:     v.GetString("metrics-addr"),
	}
	if v.IsSet("start-block") {
		cfg.StartBlock = v.GetUint64("start-block")
	}

	var err error
	if cfg.AddressesProvider, err = addressOr(v, "addresses-provider", preset.AddressesProvider); err != nil {
		return Config{}, err
	}
	if cfg.DataProvider, err = addressOr(v, "data-provider", preset.DataProvider); err != nil {
		return Config{}, err
	}
	if cfg.Adapter, err = addressOr(v, "adapter", preset.Adapter); err != nil {
		return Config{}, err
	}
	if cfg.Router, err = addressOr(v, "router", preset.Router); err != nil {
		return Config{}, err
	}
	if strings.EqualFold(strings.TrimSpace(v.GetString("multicall")), MulticallOff) {
		cfg.Multicall = common.Address{}
	} else if cfg.Multicall, err = addressOr(v, "multicall", preset.Multicall); err != nil {
		return Config{}, err
	}

	cfg.Assets = preset.Assets
	if v.IsSet("assets") {
		var entries []assetEntry
		if err := v.UnmarshalKey("assets", &entries); err != nil {
			return Config{}, fmt.Errorf("decode assets: %w", err)
		}
		if cfg.Assets, err = parseAssets(entries); err != nil {
			return Config{}, err
		}
	}

	cfg.Hubs = preset.Hubs
	if hubs := getStringSlice(v, "hubs"); hubs != nil {
		if cfg.Hubs, err = resolveAll(cfg.Assets, preset.Labels, hubs); err != nil {
			return Config{}, fmt.Errorf("hubs: %w", err)
		}
	}

	cfg.Overrides = preset.Overrides
	if v.IsSet("overrides") {
		var entries []overrideEntry
		if err := v.UnmarshalKey("overrides", &entries); err != nil {
			return Config{}, fmt.Errorf("decode overrides: %w", err)
		}
		if cfg.Overrides, err = parseOverrides(cfg.Assets, preset.Labels, entries); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values every command relies on.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if len(c.Assets) == 0 {
		return errors.New("asset set is empty")
	}
	if c.Decay != DecayCompounding && c.Decay != DecayFlat {
		return fmt.Errorf("unknown decay policy %q", c.Decay)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.SlippageBps < 0 || c.FeeBps < 0 || c.FlashPremiumBps < 0 {
		return errors.New("basis-point settings must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fallback
}

// MulticallOff disables batched reads; snapshots are then read one call at a time.
const MulticallOff = "off"

func addressOr(v *viper.Viper, key string, fallback common.Address) (common.Address, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return fallback, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, s)
	}
	return common.HexToAddress(s), nil
}

func parseAssets(entries []assetEntry) (model.AssetSet, error) {
	out := make(model.AssetSet, 0, len(entries))
	for _, e := range entries {
		if !common.IsHexAddress(e.Address) {
			return nil, fmt.Errorf("asset %s: invalid address %q", e.Symbol, e.Address)
		}
		decimals := e.Decimals
		if decimals == 0 {
			decimals = 18
		}
		out = append(out, model.Asset{
			Symbol:   e.Symbol,
			Address:  common.HexToAddress(e.Address),
			Decimals: decimals,
		})
	}
	return out, nil
}

// resolve accepts a hex address, an asset symbol, or a preset label.
func resolve(assets model.AssetSet, labels map[string]common.Address, ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	if asset, ok := assets.BySymbol(ref); ok {
		return asset.Address, nil
	}
	for label, addr := range labels {
		if strings.EqualFold(label, ref) {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("unknown token %q", ref)
}

func resolveAll(assets model.AssetSet, labels map[string]common.Address, refs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(refs))
	for _, ref := range refs {
		addr, err := resolve(assets, labels, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseOverrides(assets model.AssetSet, labels map[string]common.Address, entries []overrideEntry) ([]model.PathOverride, error) {
	out := make([]model.PathOverride, 0, len(entries))
	for i, e := range entries {
		from, err := resolve(assets, labels, e.From)
		if err != nil {
			return nil, fmt.Errorf("override %d from: %w", i, err)
		}
		to, err := resolve(assets, labels, e.To)
		if err != nil {
			return nil, fmt.Errorf("override %d to: %w", i, err)
		}
		path, err := resolveAll(assets, labels, e.Path)
		if err != nil {
			return nil, fmt.Errorf("override %d path: %w", i, err)
		}
		if len(path) < 2 {
			return nil, fmt.Errorf("override %d: path needs at least two hops", i)
		}
		out = append(out, model.PathOverride{
			From: from,
			To:   to,
			Path: model.SwapPath{
				Assets:          path,
				UseATokenAsFrom: e.UseATokenAsFrom,
				UseATokenAsTo:   e.UseATokenAsTo,
			},
		})
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
