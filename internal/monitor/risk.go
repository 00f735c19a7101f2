package monitor

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoRepay/internal/model"
	"autoRepay/internal/protocol"
)

// Risk is a borrower ranked by health factor.
type Risk struct {
	User         common.Address
	HealthFactor *big.Int
}

// Riskiest returns up to n indebted borrowers with the lowest health
// factors. Equal factors keep the users order.
func Riskiest(users []common.Address, accounts map[common.Address]model.AccountData, n int) []Risk {
	var ranked []Risk
	for _, user := range users {
		account, ok := accounts[user]
		if !ok || !account.HasDebt() || account.HealthFactor == nil {
			continue
		}
		ranked = append(ranked, Risk{User: user, HealthFactor: account.HealthFactor})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].HealthFactor.Cmp(ranked[j].HealthFactor) < 0
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FormatHealthFactor renders a wad-scaled health factor.
func FormatHealthFactor(hf *big.Int) string {
	if hf == nil {
		return "unknown"
	}
	if protocol.IsNoDebtHealthFactor(hf) {
		return "inf"
	}
	return decimal.NewFromBigInt(hf, -18).StringFixed(4)
}

func (b *Bot) logRiskiest(users []common.Address, accounts map[common.Address]model.AccountData) {
	if b.cfg.RiskTopN <= 0 {
		return
	}
	for i, risk := range Riskiest(users, accounts, b.cfg.RiskTopN) {
		b.deps.Logger.Info("riskiest borrower",
			zap.Int("rank", i+1),
			zap.String("user", risk.User.Hex()),
			zap.String("health_factor", FormatHealthFactor(risk.HealthFactor)))
	}
}
