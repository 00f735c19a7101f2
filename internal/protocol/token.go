package protocol

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"autoRepay/internal/model"
)

// VerifyAssets compares configured symbols and decimals with the token
// contracts and logs any mismatch. Decimals read from chain win.
func VerifyAssets(ctx context.Context, caller Caller, assets model.AssetSet, logger *zap.Logger) (model.AssetSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stringABI, err := tokenABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	bytes32ABI, err := tokenBytes32ABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse token bytes32 abi: %w", err)
	}

	out := make(model.AssetSet, len(assets))
	for i, asset := range assets {
		out[i] = asset

		values, err := callMethod(ctx, caller, asset.Address, stringABI, "decimals")
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.Symbol, err)
		}
		decimals, ok := values[0].(uint8)
		if !ok {
			return nil, fmt.Errorf("asset %s: unsupported decimals type %T", asset.Symbol, values[0])
		}
		if decimals != asset.Decimals {
			logger.Warn("asset decimals mismatch",
				zap.String("asset", asset.Symbol),
				zap.Uint8("configured", asset.Decimals),
				zap.Uint8("onchain", decimals),
			)
			out[i].Decimals = decimals
		}

		symbol := ""
		if values, err := callMethod(ctx, caller, asset.Address, stringABI, "symbol"); err == nil {
			symbol, _ = values[0].(string)
		} else if values, err := callMethod(ctx, caller, asset.Address, bytes32ABI, "symbol"); err == nil {
			if raw, ok := values[0].([32]byte); ok {
				symbol = string(bytes.TrimRight(raw[:], "\x00"))
			}
		} else {
			logger.Debug("symbol call failed", zap.String("asset", asset.Address.Hex()), zap.Error(err))
		}
		if symbol != "" && symbol != asset.Symbol {
			logger.Warn("asset symbol mismatch",
				zap.String("configured", asset.Symbol),
				zap.String("onchain", symbol),
				zap.String("address", asset.Address.Hex()),
			)
		}
	}
	return out, nil
}
