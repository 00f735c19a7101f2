package model

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSwapPathReversed(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	c := common.HexToAddress("0x03")

	path := SwapPath{Assets: []common.Address{a, b, c}, UseATokenAsTo: true}
	got := path.Reversed()

	want := SwapPath{Assets: []common.Address{c, b, a}, UseATokenAsFrom: true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected reversed path: %+v", got)
	}
	if path.Assets[0] != a {
		t.Fatalf("reverse mutated the original path")
	}
}

func TestSwapPathNoop(t *testing.T) {
	if !(SwapPath{UseATokenAsFrom: true}).IsNoop() {
		t.Fatalf("empty path should be a noop")
	}
	if (SwapPath{Assets: []common.Address{{}, {}}}).IsNoop() {
		t.Fatalf("two-asset path is not a noop")
	}
}

func TestThresholdsIsZero(t *testing.T) {
	if !(UserThresholds{}).IsZero() {
		t.Fatalf("zero value should be cleared")
	}
	cleared := UserThresholds{Min: big.NewInt(0), Target: big.NewInt(0), Max: big.NewInt(0)}
	if !cleared.IsZero() {
		t.Fatalf("explicit zeros should be cleared")
	}
	set := UserThresholds{Min: big.NewInt(1)}
	if set.IsZero() {
		t.Fatalf("non-zero min is not cleared")
	}
}

func TestReserveTokensDebtToken(t *testing.T) {
	tokens := ReserveTokens{
		StableDebt:   common.HexToAddress("0x0a"),
		VariableDebt: common.HexToAddress("0x0b"),
	}
	if tokens.DebtToken(RateModeStable) != tokens.StableDebt {
		t.Fatalf("stable mode should map to stable debt token")
	}
	if tokens.DebtToken(RateModeVariable) != tokens.VariableDebt {
		t.Fatalf("variable mode should map to variable debt token")
	}
}

func TestPositionTotalDebt(t *testing.T) {
	pos := Position{StableDebt: big.NewInt(3)}
	if pos.TotalDebt().Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("unexpected total debt %s", pos.TotalDebt())
	}
}
