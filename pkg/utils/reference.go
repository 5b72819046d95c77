package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	RequestReferencePrefix = "REQ"
	GatewayTxnPrefix       = "TXN"
	ManualTxnPrefix        = "MAN"

	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceSuffix   = 5

	// MaxReferenceAttempts bounds regeneration when an insert hits the
	// unique constraint on a reference column.
	MaxReferenceAttempts = 5
)

var referencePattern = regexp.MustCompile(`^[A-Z]+-\d{8}-[A-Z0-9]{5}$`)

// GenerateReference returns PREFIX-YYYYMMDD-XXXXX with the date in Manila time.
func GenerateReference(prefix string, now time.Time) (string, error) {
	suffix := make([]byte, referenceSuffix)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate reference: %w", err)
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.In(phLoc).Format("20060102"), suffix), nil
}

func IsReference(s string) bool {
	return referencePattern.MatchString(s)
}
