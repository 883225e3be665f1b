package enums

// LedgerEntryType is the direction of a ledger entry.
type LedgerEntryType string

const (
	LedgerEntryCredit LedgerEntryType = "credit"
	LedgerEntryDebit  LedgerEntryType = "debit"
)

// IsValid reports whether the value is credit or debit.
func (t LedgerEntryType) IsValid() bool {
	return t == LedgerEntryCredit || t == LedgerEntryDebit
}

// Opposite returns the direction used to reverse an entry of this type.
func (t LedgerEntryType) Opposite() LedgerEntryType {
	if t == LedgerEntryCredit {
		return LedgerEntryDebit
	}
	return LedgerEntryCredit
}

// Sign returns +1 for credits and -1 for debits.
func (t LedgerEntryType) Sign() int64 {
	if t == LedgerEntryDebit {
		return -1
	}
	return 1
}

// LedgerEntryKind classifies why money moved.
type LedgerEntryKind string

const (
	LedgerKindPaymentCapture     LedgerEntryKind = "payment_capture"
	LedgerKindCourierEarnings    LedgerEntryKind = "courier_earnings"
	LedgerKindRestaurantEarnings LedgerEntryKind = "restaurant_earnings"
	LedgerKindAdminCommission    LedgerEntryKind = "admin_commission"
	LedgerKindPayout             LedgerEntryKind = "payout"
	LedgerKindRefund             LedgerEntryKind = "refund"
	LedgerKindReversal           LedgerEntryKind = "reversal"
	LedgerKindWithdrawal         LedgerEntryKind = "withdrawal"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerKindPaymentCapture,
	LedgerKindCourierEarnings,
	LedgerKindRestaurantEarnings,
	LedgerKindAdminCommission,
	LedgerKindPayout,
	LedgerKindRefund,
	LedgerKindReversal,
	LedgerKindWithdrawal,
}

func (k LedgerEntryKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches a known ledger entry kind.
func (k LedgerEntryKind) IsValid() bool {
	return known(k, validLedgerEntryKinds)
}

// IsEarning reports whether the kind represents money owed to a party.
func (k LedgerEntryKind) IsEarning() bool {
	switch k {
	case LedgerKindCourierEarnings, LedgerKindRestaurantEarnings, LedgerKindAdminCommission:
		return true
	}
	return false
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	return parse("ledger entry kind", value, validLedgerEntryKinds)
}
