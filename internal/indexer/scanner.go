package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"autoRepay/internal/model"
)

// LogSource is the part of the chain client the scanner reads from.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Decoder turns adapter logs into threshold events.
type Decoder interface {
	Topic0() common.Hash
	Decode(log types.Log) (model.ThresholdEvent, error)
}

// ScanConfig holds runtime settings for the scanner.
type ScanConfig struct {
	Adapter      common.Address
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Scanner pulls HealthFactorSet events from the adapter contract.
type Scanner struct {
	cfg     ScanConfig
	source  LogSource
	decoder Decoder
	logger  *zap.Logger
}

// NewScanner builds a Scanner with its dependencies.
func NewScanner(cfg ScanConfig, source LogSource, decoder Decoder, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:     cfg,
		source:  source,
		decoder: decoder,
		logger:  logger,
	}
}

// Scan reads events from block from up to the chain head. It returns the
// events in log order and the last block covered, so the next scan starts at
// reached+1. On error nothing is returned and the range should be retried;
// a failed scan leaves no state behind. Duplicate logs are dropped within a
// single scan only.
func (s *Scanner) Scan(ctx context.Context, from uint64) ([]model.ThresholdEvent, uint64, error) {
	if s.cfg.BatchSize == 0 {
		return nil, 0, fmt.Errorf("batch size must be greater than zero")
	}
	if s.cfg.Adapter == (common.Address{}) {
		return nil, 0, fmt.Errorf("adapter address is required")
	}

	var latest uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = s.source.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get latest block: %w", err)
	}
	if from > latest {
		s.logger.Debug("nothing to scan", zap.Uint64("from", from), zap.Uint64("latest", latest))
		return nil, from - 1, nil
	}

	ranges, err := SplitRange(from, latest, s.cfg.BatchSize)
	if err != nil {
		return nil, 0, err
	}

	var events []model.ThresholdEvent
	seen := make(map[string]struct{})
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return nil, 0, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		count := 0
		for _, log := range logs {
			if log.Removed || isDuplicate(seen, log) {
				continue
			}
			event, err := s.decoder.Decode(log)
			if err != nil {
				s.logger.Warn("skip undecodable log",
					zap.Error(err),
					zap.Uint64("block_number", log.BlockNumber),
					zap.String("tx_hash", log.TxHash.Hex()))
				continue
			}
			events = append(events, event)
			count++
		}

		s.logger.Debug("batch scanned", zap.Int("events", count), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return events, latest, nil
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	topics := []common.Hash{s.decoder.Topic0()}
	addresses := []common.Address{s.cfg.Adapter}
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.source.FilterLogs(ctx, fromBlock, toBlock, addresses, topics)
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}
