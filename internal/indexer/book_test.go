package indexer

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

func thresholds(min, target, max int64) model.UserThresholds {
	return model.UserThresholds{Min: big.NewInt(min), Target: big.NewInt(target), Max: big.NewInt(max)}
}

func TestBookApplyKeepsFirstSeenOrder(t *testing.T) {
	book := NewBook()
	book.Apply([]model.ThresholdEvent{
		{User: userB, Thresholds: thresholds(1, 2, 3)},
		{User: userA, Thresholds: thresholds(4, 5, 6)},
		{User: userB, Thresholds: thresholds(7, 8, 9)},
	})

	want := []common.Address{userB, userA}
	if got := book.Users(); !reflect.DeepEqual(got, want) {
		t.Fatalf("users = %v, want %v", got, want)
	}
	th, ok := book.Get(userB)
	if !ok || th.Min.Int64() != 7 {
		t.Fatalf("expected latest thresholds for B, got %+v", th)
	}
}

func TestBookClearKeepsUserWithZeros(t *testing.T) {
	book := NewBook()
	book.Apply([]model.ThresholdEvent{{User: userA, Thresholds: thresholds(1, 2, 3)}})
	book.Apply([]model.ThresholdEvent{{User: userA, Thresholds: thresholds(0, 0, 0)}})

	if book.Len() != 1 {
		t.Fatalf("expected user to stay listed, len %d", book.Len())
	}
	th, _ := book.Get(userA)
	if !th.IsZero() {
		t.Fatalf("expected cleared thresholds, got %+v", th)
	}
}

func TestBookRestore(t *testing.T) {
	src := NewBook()
	src.Set(userA, thresholds(1, 2, 3))
	src.Set(userB, thresholds(4, 5, 6))

	dst := NewBook()
	dst.Restore(src.Settings())
	if !reflect.DeepEqual(dst.Settings(), src.Settings()) {
		t.Fatalf("restore mismatch: %+v != %+v", dst.Settings(), src.Settings())
	}
}
