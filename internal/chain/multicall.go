package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const multicall3ABIJSON = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"target","type":"address"},
      {"internalType":"bool","name":"allowFailure","type":"bool"},
      {"internalType":"bytes","name":"callData","type":"bytes"}],
    "internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],
   "name":"aggregate3",
   "outputs":[{"components":[
      {"internalType":"bool","name":"success","type":"bool"},
      {"internalType":"bytes","name":"returnData","type":"bytes"}],
    "internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],
   "stateMutability":"payable","type":"function"}
]`

var (
	multicallOnce sync.Once
	multicallABI  abi.ABI
	multicallErr  error
)

// Multicall3ABI returns the parsed aggregate3 ABI.
func Multicall3ABI() (abi.ABI, error) {
	return loadMulticallABI()
}

func loadMulticallABI() (abi.ABI, error) {
	multicallOnce.Do(func() {
		multicallABI, multicallErr = abi.JSON(strings.NewReader(multicall3ABIJSON))
	})
	return multicallABI, multicallErr
}

// Call is one sub-call of an aggregate3 batch.
type Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result is the outcome of one sub-call.
type Result struct {
	Success    bool
	ReturnData []byte
}

// Caller is the eth_call surface the multicaller needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Multicaller batches read calls through a Multicall3 deployment.
type Multicaller struct {
	caller  Caller
	address common.Address
}

// NewMulticaller returns a Multicaller bound to the Multicall3 address.
func NewMulticaller(caller Caller, address common.Address) (*Multicaller, error) {
	if _, err := loadMulticallABI(); err != nil {
		return nil, fmt.Errorf("load multicall3 abi: %w", err)
	}
	return &Multicaller{caller: caller, address: address}, nil
}

// Address returns the Multicall3 contract address.
func (m *Multicaller) Address() common.Address {
	return m.address
}

// Execute runs all calls in one eth_call and returns results in call order.
func (m *Multicaller) Execute(ctx context.Context, calls []Call, blockNumber *big.Int) ([]Result, error) {
	if len(calls) == 0 {
		return []Result{}, nil
	}
	parsed, err := loadMulticallABI()
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	out, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 at %s with %d calls: %w", m.address.Hex(), len(calls), err)
	}

	unpacked, err := parsed.Unpack("aggregate3", out)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 output length %d", len(unpacked))
	}

	raw, ok := unpacked[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected aggregate3 output type %T", unpacked[0])
	}

	results := make([]Result, len(raw))
	for i, r := range raw {
		results[i] = Result{Success: r.Success, ReturnData: r.ReturnData}
	}
	return results, nil
}
