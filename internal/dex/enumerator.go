package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

// Enumerator generates candidate swap paths between two reserves.
type Enumerator struct {
	hubs      []common.Address
	overrides []model.PathOverride
}

// NewEnumerator builds an Enumerator over the given hub tokens and
// hand-curated overrides.
func NewEnumerator(hubs []common.Address, overrides []model.PathOverride) *Enumerator {
	return &Enumerator{hubs: hubs, overrides: overrides}
}

type endpoint struct {
	token   common.Address
	wrapped bool
}

// Enumerate returns the candidate paths from one reserve to another. Each
// side may use the plain asset or its wrapped reserve token; every
// combination is offered directly and through each hub. When the pair has an
// override, only the override paths are returned. from == to yields nil.
func (e *Enumerator) Enumerate(from, fromWrapped, to, toWrapped common.Address) []model.SwapPath {
	if from == to {
		return nil
	}
	if paths := e.overridesFor(from, to); len(paths) > 0 {
		return paths
	}

	combos := [][2]endpoint{
		{{from, false}, {to, false}},
		{{fromWrapped, true}, {to, false}},
		{{from, false}, {toWrapped, true}},
		{{fromWrapped, true}, {toWrapped, true}},
	}

	paths := make([]model.SwapPath, 0, len(combos)*(1+len(e.hubs)))
	for _, c := range combos {
		paths = append(paths, model.SwapPath{
			Assets:          []common.Address{c[0].token, c[1].token},
			UseATokenAsFrom: c[0].wrapped,
			UseATokenAsTo:   c[1].wrapped,
		})
	}
	for _, hub := range e.hubs {
		for _, c := range combos {
			if hub == c[0].token || hub == c[1].token {
				continue
			}
			paths = append(paths, model.SwapPath{
				Assets:          []common.Address{c[0].token, hub, c[1].token},
				UseATokenAsFrom: c[0].wrapped,
				UseATokenAsTo:   c[1].wrapped,
			})
		}
	}
	return paths
}

func (e *Enumerator) overridesFor(from, to common.Address) []model.SwapPath {
	var out []model.SwapPath
	for _, o := range e.overrides {
		switch {
		case o.From == from && o.To == to:
			out = append(out, copyPath(o.Path))
		case o.From == to && o.To == from:
			out = append(out, o.Path.Reversed())
		}
	}
	return out
}

func copyPath(p model.SwapPath) model.SwapPath {
	assets := make([]common.Address, len(p.Assets))
	copy(assets, p.Assets)
	return model.SwapPath{Assets: assets, UseATokenAsFrom: p.UseATokenAsFrom, UseATokenAsTo: p.UseATokenAsTo}
}
