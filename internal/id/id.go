package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatPairID returns a reconciled-pair ID like "2024-08-001".
func FormatPairID(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// FormatLegID returns a leg ID like "2024-08-001a". Legs past 'z' continue
// as "aa", "ab", ... so large pairs keep unique leg IDs.
func FormatLegID(pairID string, leg int) string {
	var suffix []byte
	for n := leg; ; n = n/26 - 1 {
		suffix = append([]byte{byte('a' + n%26)}, suffix...)
		if n < 26 {
			break
		}
	}
	return pairID + string(suffix)
}

// ParsePairID parses "2024-08-001" (or a leg ID) into year, month, seq.
func ParsePairID(id string) (year, month, seq int, err error) {
	base := PairGroup(id)

	parts := strings.SplitN(base, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid pair ID format: %q", id)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in pair ID %q: %w", id, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in pair ID %q: %w", id, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in pair ID %q: %w", id, err)
	}

	return year, month, seq, nil
}

// PairGroup strips the leg suffix from a leg ID.
// "2024-08-001ab" -> "2024-08-001"
func PairGroup(legID string) string {
	i := len(legID)
	for i > 0 && legID[i-1] >= 'a' && legID[i-1] <= 'z' {
		i--
	}
	return legID[:i]
}

// NewBatch returns a short random identifier for one statement upload.
func NewBatch() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// FormatTxnID returns a transaction ID like "bank-1f2e3d4c-0007".
func FormatTxnID(prefix, batch string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, batch, seq)
}
