package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCaller struct {
	calls int
}

// CallContract answers aggregate3 by echoing every sub-call's calldata back,
// failing the ones with empty calldata.
func (e *echoCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	e.calls++
	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["aggregate3"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := args[0].([]struct {
		Target       common.Address `json:"target"`
		AllowFailure bool           `json:"allowFailure"`
		CallData     []byte         `json:"callData"`
	})
	out := make([]Result, len(calls))
	for i, c := range calls {
		out[i] = Result{Success: len(c.CallData) > 0, ReturnData: c.CallData}
	}
	return method.Outputs.Pack(out)
}

func TestMulticallerExecute(t *testing.T) {
	caller := &echoCaller{}
	m, err := NewMulticaller(caller, common.HexToAddress("0xca11"))
	require.NoError(t, err)

	results, err := m.Execute(context.Background(), []Call{
		{Target: common.HexToAddress("0x01"), CallData: []byte{0x01, 0x02}},
		{Target: common.HexToAddress("0x02"), AllowFailure: true},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte{0x01, 0x02}, results[0].ReturnData)
	assert.False(t, results[1].Success)
	assert.Equal(t, 1, caller.calls)
}

func TestMulticallerEmptyBatch(t *testing.T) {
	caller := &echoCaller{}
	m, err := NewMulticaller(caller, common.HexToAddress("0xca11"))
	require.NoError(t, err)

	results, err := m.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, caller.calls)
}
