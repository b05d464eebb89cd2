// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/danielhkuo/civic-consensus/models"
)

// chainHash binds a ledger entry to its ballot's immutable fields and
// to the previous entry's hash. The field encoding is canonical:
// fixed 4-digit decimal strings and UTC RFC3339Nano timestamps, so the
// digest is reproducible by any verifier reading the same rows.
func chainHash(prevHash string, b models.Ballot) string {
	fields := []string{
		prevHash,
		strconv.FormatInt(b.ID, 10),
		strconv.FormatInt(b.UserID, 10),
		b.TargetType,
		strconv.FormatInt(b.TargetID, 10),
		b.Modality,
		b.RawValue.StringFixed(models.ScoreScale),
		b.WeightedValue.StringFixed(models.ScoreScale),
		b.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
