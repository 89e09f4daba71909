// Package core provides the transaction domain model and money helpers.
//
// This file contains the amount parser used by the rule-based classifier and
// the Rupiah formatter used by every report.
package core

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyPrefix is prepended to every formatted amount.
var CurrencyPrefix = "Rp"

var idPrinter = message.NewPrinter(language.Indonesian)

// ParseAmount converts a locale formatted integer ("5.000.000") to its value.
//
// All "." thousands separators are removed before parsing. The domain has no
// fractional sub-units, so anything that is not a non-negative integer after
// stripping yields 0, which callers treat as "no amount".
//
// Examples:
//   ParseAmount("5.000.000") -> 5000000
//   ParseAmount("50000")     -> 50000
//   ParseAmount("abc")       -> 0
func ParseAmount(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FormatRupiah renders an amount with Indonesian grouping, e.g. "Rp 5.000.000".
func FormatRupiah(amount int64) string {
	if amount < 0 {
		return "-" + CurrencyPrefix + " " + idPrinter.Sprintf("%d", -amount)
	}
	return CurrencyPrefix + " " + idPrinter.Sprintf("%d", amount)
}
