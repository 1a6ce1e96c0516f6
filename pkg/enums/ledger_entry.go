package enums

// LedgerEntrySource identifies the subsystem that produced a ledger entry.
type LedgerEntrySource string

const (
	LedgerSourcePOSShift LedgerEntrySource = "pos_shift"
)

// Ledger categories substituted when a cash movement keeps the default category.
const (
	LedgerCategoryCashierOperations = "Operasional Kasir"
	LedgerCategoryCashierDeposit    = "Setoran Kasir"
)
