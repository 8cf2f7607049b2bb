package agent

import (
	"fmt"
	"math/big"
	"math/rand"
	"strings"

	"github.com/moltlabs/moltagent/internal/domain"
)

// Receipt templates rotate so back-to-back receipts don't read identically.
// Placeholders: %[1]s action, %[2]s amount, %[3]s rationale, %[4]s tx hash.
var receiptTemplates = []string{
	"executed %[1]s of %[2]s. reasoning: %[3]s tx: %[4]s",
	"just moved: %[1]s %[2]s. why: %[3]s (%[4]s)",
	"trade receipt: %[1]s %[2]s. %[3]s tx %[4]s",
	"on-chain update: %[1]s for %[2]s. %[3]s proof: %[4]s",
	"%[1]s filled, size %[2]s. thinking: %[3]s tx: %[4]s",
}

const templateLookback = 3

// RenderReceipt formats a trade receipt from an executed decision, rotating
// across the template pool and recording the chosen index in state.
func RenderReceipt(d domain.Decision, txHash string, state *domain.AgentState, rng *rand.Rand) string {
	idx := domain.PickNonRecentIndex(len(receiptTemplates), state.RecentTemplateIndices, templateLookback, rng)
	state.RecordTemplateIndex(idx)

	var amount string
	switch d.Action {
	case domain.ActionBuy:
		amount = formatEth(d.BuySpendWei) + " ETH"
	case domain.ActionSell:
		amount = d.SellAmountRaw.String() + " tokens"
	default:
		amount = "nothing"
	}

	rationale := strings.TrimSpace(d.Rationale)
	if rationale != "" && !strings.HasSuffix(rationale, ".") {
		rationale += "."
	}
	return fmt.Sprintf(receiptTemplates[idx], strings.ToLower(string(d.Action)), amount, rationale, txHash)
}

// formatEth renders wei as a trimmed decimal ETH string.
func formatEth(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.DivMod(wei, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), frac)
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%018s", frac.String()), "0")
	return whole.String() + "." + fracStr
}
