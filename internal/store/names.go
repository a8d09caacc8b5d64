// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NameKey returns the form entity names are matched by: Unicode case-folded
// and NFC-normalized. "ÉLAN", "élan" and "élan" share one key.
func NameKey(name string) string {
	// A Caser is stateful and not safe for concurrent use.
	return norm.NFC.String(cases.Fold().String(norm.NFC.String(name)))
}
