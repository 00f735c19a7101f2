package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "autorepay",
		Short:        "Health-factor rebalancing bot for Moola",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the rebalancing daemon",
		RunE:  runBot,
	}
	addChainFlags(runCmd.Flags())
	runCmd.Flags().Uint64("start-block", 0, "first block to scan for HealthFactorSet events (default: network preset)")
	runCmd.Flags().Uint64("batch-size", 5000, "blocks per log query")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for log queries")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int64("slippage-bps", 100, "swap slippage buffer in basis points")
	runCmd.Flags().Int64("fee-bps", 10, "adapter fee in basis points")
	runCmd.Flags().Int64("flash-premium-bps", 9, "flash-loan premium in basis points")
	runCmd.Flags().String("decay", "compounding", "amount decay between attempts (compounding, flat)")
	runCmd.Flags().Int("max-attempts", 4, "amount-reduction attempts per borrower")
	runCmd.Flags().Int("dry-run-retries", 5, "tries per dry run")
	runCmd.Flags().Duration("dry-run-delay", 100*time.Millisecond, "delay between dry-run tries")
	runCmd.Flags().Uint64("gas-limit", 2_000_000, "gas limit for adapter calls")
	runCmd.Flags().Duration("poll-interval", 60*time.Second, "sleep between cycles")
	runCmd.Flags().Int("concurrency", 20, "parallel account-data reads")
	runCmd.Flags().Int("risk-top-n", 3, "riskiest borrowers to log per cycle")
	runCmd.Flags().String("state-file", "./data/state.json", "scanner state file")
	runCmd.Flags().String("outcomes-file", "./data/outcomes.jsonl", "rebalance outcomes JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for state and outcomes")
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables")
	root.AddCommand(runCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the best swap path between two reserves",
		RunE:  runQuote,
	}
	addChainFlags(quoteCmd.Flags())
	quoteCmd.Flags().String("from", "", "asset to swap from (symbol or address)")
	quoteCmd.Flags().String("to", "", "asset to swap to (symbol or address)")
	quoteCmd.Flags().Bool("from-wrapped", false, "only consider routes spending the wrapped from token")
	quoteCmd.Flags().Bool("to-wrapped", false, "only consider routes receiving the wrapped to token")
	quoteCmd.Flags().String("amount", "", "amount in whole tokens")
	quoteCmd.Flags().String("direction", "exact-out", "exact-out (repay) or exact-in (borrow)")
	root.AddCommand(quoteCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a borrower's position and the rebalance the bot would plan",
		RunE:  runInspect,
	}
	addChainFlags(inspectCmd.Flags())
	inspectCmd.Flags().String("user", "", "borrower address")
	root.AddCommand(inspectCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan HealthFactorSet events once and print the threshold book",
		RunE:  runScan,
	}
	addChainFlags(scanCmd.Flags())
	scanCmd.Flags().Uint64("start-block", 0, "first block to scan (default: network preset)")
	scanCmd.Flags().Uint64("batch-size", 5000, "blocks per log query")
	scanCmd.Flags().Int("max-retries", 5, "maximum retry attempts for log queries")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	scanCmd.Flags().String("state-file", "./data/state.json", "state file to write")
	root.AddCommand(scanCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(fs *pflag.FlagSet) {
	fs.String("network", "celo", "network preset (celo, alfajores)")
	fs.String("rpc", "", "Celo RPC URL (default: network preset)")
	fs.Float64("rpc-rate", 0, "max RPC requests per second, 0 disables")
	fs.Duration("rpc-timeout", 0, "per-call RPC timeout, 0 disables")
	fs.String("addresses-provider", "", "lending pool addresses provider")
	fs.String("data-provider", "", "protocol data provider")
	fs.String("adapter", "", "rebalancing adapter")
	fs.String("router", "", "exchange router")
	fs.String("multicall", "", "Multicall3 address (default from network preset); \"off\" reads sequentially")
	fs.StringSlice("hubs", nil, "hub assets for routing (symbols or addresses)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
