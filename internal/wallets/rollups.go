package wallets

import "github.com/angelmondragon/foodrun-backend/pkg/enums"

const (
	colTotalEarnings     = "total_earnings_cents"
	colTotalSales        = "total_sales_cents"
	colTotalPlatformFees = "total_platform_fees_cents"
	colTotalWithdrawn    = "total_withdrawn_cents"
)

// rollupsFor returns the counter deltas that accompany an entry.
func rollupsFor(kind enums.LedgerEntryKind, typ enums.LedgerEntryType, amountCents int64) map[string]int64 {
	switch {
	case kind.IsEarning() && typ == enums.LedgerEntryCredit:
		return map[string]int64{colTotalEarnings: amountCents}
	case kind == enums.LedgerKindPaymentCapture && typ == enums.LedgerEntryCredit:
		return map[string]int64{colTotalSales: amountCents}
	case kind == enums.LedgerKindWithdrawal && typ == enums.LedgerEntryDebit:
		return map[string]int64{colTotalWithdrawn: amountCents}
	}
	return nil
}

func negate(rollups map[string]int64) map[string]int64 {
	if len(rollups) == 0 {
		return nil
	}
	out := make(map[string]int64, len(rollups))
	for column, value := range rollups {
		out[column] = -value
	}
	return out
}
