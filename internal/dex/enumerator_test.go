package dex

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoRepay/internal/model"
)

var (
	celo   = common.HexToAddress("0x10")
	mcelo  = common.HexToAddress("0x11")
	cusd   = common.HexToAddress("0x20")
	mcusd  = common.HexToAddress("0x21")
	ceur   = common.HexToAddress("0x30")
	mceur  = common.HexToAddress("0x31")
	creal  = common.HexToAddress("0x40")
	mcreal = common.HexToAddress("0x41")
	moo    = common.HexToAddress("0x50")
	mmoo   = common.HexToAddress("0x51")
)

func testEnumerator() *Enumerator {
	return NewEnumerator(
		[]common.Address{celo, mcelo, cusd, mcusd, ceur, mceur},
		[]model.PathOverride{
			{From: ceur, To: creal, Path: model.SwapPath{Assets: []common.Address{ceur, celo, cusd, creal}}},
			{From: creal, To: moo, Path: model.SwapPath{Assets: []common.Address{creal, cusd, celo, moo}, UseATokenAsTo: true}},
		},
	)
}

func TestEnumerateCompleteness(t *testing.T) {
	e := testEnumerator()
	wrapped := map[common.Address]common.Address{celo: mcelo, cusd: mcusd, ceur: mceur, creal: mcreal, moo: mmoo}

	for from, fromW := range wrapped {
		for to, toW := range wrapped {
			if from == to {
				continue
			}
			paths := e.Enumerate(from, fromW, to, toW)
			require.NotEmpty(t, paths, "%s -> %s", from.Hex(), to.Hex())
			for _, p := range paths {
				require.GreaterOrEqual(t, len(p.Assets), 2)
				first, last := p.Assets[0], p.Assets[len(p.Assets)-1]
				assert.Contains(t, []common.Address{from, fromW}, first)
				assert.Contains(t, []common.Address{to, toW}, last)
			}
		}
	}
}

func TestEnumerateGenericOrderAndFlags(t *testing.T) {
	e := NewEnumerator([]common.Address{celo}, nil)
	paths := e.Enumerate(cusd, mcusd, ceur, mceur)
	require.Len(t, paths, 8)

	assert.Equal(t, model.SwapPath{Assets: []common.Address{cusd, ceur}}, paths[0])
	assert.Equal(t, model.SwapPath{Assets: []common.Address{mcusd, ceur}, UseATokenAsFrom: true}, paths[1])
	assert.Equal(t, model.SwapPath{Assets: []common.Address{cusd, mceur}, UseATokenAsTo: true}, paths[2])
	assert.Equal(t, model.SwapPath{Assets: []common.Address{mcusd, mceur}, UseATokenAsFrom: true, UseATokenAsTo: true}, paths[3])
	assert.Equal(t, model.SwapPath{Assets: []common.Address{cusd, celo, ceur}}, paths[4])
	assert.Equal(t, model.SwapPath{Assets: []common.Address{mcusd, celo, mceur}, UseATokenAsFrom: true, UseATokenAsTo: true}, paths[7])
}

func TestEnumerateSkipsHubEqualToEndpoint(t *testing.T) {
	e := NewEnumerator([]common.Address{celo, cusd}, nil)
	paths := e.Enumerate(celo, mcelo, ceur, mceur)

	for _, p := range paths {
		for i := 1; i < len(p.Assets); i++ {
			assert.NotEqual(t, p.Assets[i-1], p.Assets[i], "repeated hop in %s", p)
		}
	}
	// 4 direct, 2 through celo (wrapped start only), 4 through cusd
	assert.Len(t, paths, 10)
}

func TestEnumerateOverridePrecedence(t *testing.T) {
	e := testEnumerator()

	paths := e.Enumerate(ceur, mceur, creal, mcreal)
	require.Len(t, paths, 1)
	assert.Equal(t, []common.Address{ceur, celo, cusd, creal}, paths[0].Assets)
	assert.False(t, paths[0].UseATokenAsFrom)
	assert.False(t, paths[0].UseATokenAsTo)

	paths = e.Enumerate(creal, mcreal, ceur, mceur)
	require.Len(t, paths, 1)
	assert.Equal(t, []common.Address{creal, cusd, celo, ceur}, paths[0].Assets)

	paths = e.Enumerate(creal, mcreal, moo, mmoo)
	require.Len(t, paths, 1)
	assert.True(t, paths[0].UseATokenAsTo)
	assert.False(t, paths[0].UseATokenAsFrom)

	paths = e.Enumerate(moo, mmoo, creal, mcreal)
	require.Len(t, paths, 1)
	assert.Equal(t, []common.Address{moo, celo, cusd, creal}, paths[0].Assets)
	assert.True(t, paths[0].UseATokenAsFrom)
	assert.False(t, paths[0].UseATokenAsTo)
}

func TestEnumerateOverrideIsNotShared(t *testing.T) {
	e := testEnumerator()
	paths := e.Enumerate(ceur, mceur, creal, mcreal)
	paths[0].Assets[0] = common.Address{}

	again := e.Enumerate(ceur, mceur, creal, mcreal)
	assert.Equal(t, ceur, again[0].Assets[0])
}

func TestEnumerateSameAsset(t *testing.T) {
	assert.Nil(t, testEnumerator().Enumerate(cusd, mcusd, cusd, mcusd))
}
