package normalize

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriState carries a flag that may be explicitly true, explicitly false, or
// absent from the source data. The distinction drives sharing-status
// derivation: an absent flag means "pending", not "individual".
type TriState int

const (
	// FlagUnknown means the source carried no value for the flag.
	FlagUnknown TriState = iota
	// FlagTrue means the source explicitly set the flag.
	FlagTrue
	// FlagFalse means the source explicitly cleared the flag.
	FlagFalse
)

// SharingStatus classifies a transaction for the two-party ledger.
type SharingStatus string

const (
	SharingIndividual SharingStatus = "individual"
	SharingShared     SharingStatus = "shared"
	SharingSplit      SharingStatus = "split"
	SharingPending    SharingStatus = "pending"
)

// QualityFlag is a non-fatal row anomaly. Flags accumulate on record copies
// and surface in the audit collection; they are never errors.
type QualityFlag string

const (
	FlagMissingDate        QualityFlag = "MISSING_DATE"
	FlagNegativeAmount     QualityFlag = "NEGATIVE_AMOUNT"
	FlagOutlierAmount      QualityFlag = "OUTLIER_AMOUNT"
	FlagDuplicateSuspected QualityFlag = "DUPLICATE_SUSPECTED"
	FlagManualOverride     QualityFlag = "MANUAL_OVERRIDE"
	FlagRentVariance       QualityFlag = "RENT_VARIANCE"
	FlagIdentityCollision  QualityFlag = "IDENTITY_COLLISION"
)

// Record is one canonical transaction. Every source row normalizes into this
// shape regardless of which schema matched; unmapped source columns survive
// only inside Extras. Records are value types: corrections produce a new
// record, they never mutate in place.
type Record struct {
	TxnID string
	Owner string

	Date           *time.Time // nil when the source date was absent or unparseable
	PostDate       *time.Time
	StatementStart *time.Time
	StatementEnd   *time.Time

	Amount        decimal.Decimal
	AllowedAmount decimal.Decimal
	Currency      string

	OriginalDescription string
	Description         string
	OriginalMerchant    string
	Merchant            string
	Category            string

	Account      string
	AccountLast4 string
	AccountType  string
	Institution  string

	SharedFlag    TriState
	SplitPercent  decimal.Decimal // 0..100
	SharingStatus SharingStatus

	DataSourceName string
	DataSourceDate time.Time

	// Extras is a JSON object of source columns no schema alias recognized.
	Extras string

	// SourceRow is the 1-based data row index within the source file, kept
	// for audit traceability and deterministic ordering.
	SourceRow int

	Flags []QualityFlag
}

// WithFlag returns a copy of the record with the flag appended. The original
// record's flag slice is never shared with the copy.
func (r Record) WithFlag(f QualityFlag) Record {
	flags := make([]QualityFlag, 0, len(r.Flags)+1)
	flags = append(flags, r.Flags...)
	flags = append(flags, f)
	r.Flags = flags
	return r
}

// HasFlag reports whether the record carries the given flag.
func (r Record) HasFlag(f QualityFlag) bool {
	for _, flag := range r.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// DeriveSharingStatus applies the classification priority order. The split
// check must run before the more general shared check: a true flag with a
// partial percentage is a split, not a plain shared transaction.
func DeriveSharingStatus(flag TriState, splitPercent decimal.Decimal) SharingStatus {
	switch {
	case flag == FlagTrue && splitPercent.IsPositive() && splitPercent.LessThan(hundred):
		return SharingSplit
	case flag == FlagTrue:
		return SharingShared
	case flag == FlagFalse:
		return SharingIndividual
	default:
		return SharingPending
	}
}
