package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/SteelMorgan/logscan/internal/domain"
)

// calculateRecordHash identifies a record by where it was found and which
// pattern produced it. Rescanning a pushed back line yields the same hash,
// so ReplacingMergeTree collapses the duplicates.
func calculateRecordHash(filePath string, record *domain.MatchRecord) string {
	h := sha256.New()

	fmt.Fprintf(h, "%s|", filePath)
	fmt.Fprintf(h, "%d|", record.Offset)
	fmt.Fprintf(h, "%s|", record.PatternID)
	fmt.Fprintf(h, "%s|", record.RawLine)

	return hex.EncodeToString(h.Sum(nil))
}
