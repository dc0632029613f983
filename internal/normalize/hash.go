package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// hashSentinel stands in for any absent field so the digest input keeps
	// a fixed shape and repeated ingestion stays idempotent.
	hashSentinel = "<none>"

	// hashDescriptionLimit bounds the description prefix fed to the digest.
	hashDescriptionLimit = 40

	// txnIDLength is the truncated hex length of the digest.
	txnIDLength = 16
)

// TxnID derives the deterministic transaction identifier: day-precision
// date, fixed-decimal amount, a bounded description prefix, and the account
// identifier, joined and digested with SHA-256, truncated to 16 hex chars.
func TxnID(date *time.Time, amount decimal.Decimal, description, account string) string {
	datePart := hashSentinel
	if date != nil {
		datePart = date.Format("2006-01-02")
	}

	descPart := strings.TrimSpace(description)
	if descPart == "" {
		descPart = hashSentinel
	} else {
		runes := []rune(descPart)
		if len(runes) > hashDescriptionLimit {
			descPart = string(runes[:hashDescriptionLimit])
		}
	}

	accountPart := strings.TrimSpace(account)
	if accountPart == "" {
		accountPart = hashSentinel
	}

	input := strings.Join([]string{
		datePart,
		amount.StringFixed(2),
		descPart,
		accountPart,
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:txnIDLength]
}
