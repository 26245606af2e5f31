// Package scpi holds the small shared vocabulary of SCPI conventions used
// by the simulation and replay engines: canonical command forms for table
// lookups, the IEEE 488.2 mnemonics recognized as builtins, and the
// instrument error-string format.
package scpi

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IEEE 488.2 common commands and the error-queue query recognized as
// builtin fallbacks when a profile does not override them.
const (
	CmdIdentify    = "*IDN?"
	CmdClearStatus = "*CLS"
	CmdReset       = "*RST"
	CmdErrorQuery  = "SYST:ERR?"
)

// NoError is the response the error queue produces when it is empty.
const NoError = `+0,"No error"`

// Normalize returns the matching form of a command: Unicode NFC
// normalization with surrounding whitespace trimmed. Case is preserved,
// so pattern captures keep the caller's argument text.
//
// Visually identical commands with different Unicode encodings (composed
// vs decomposed accents in string arguments) would otherwise land in
// different table slots.
func Normalize(cmd string) string {
	return strings.TrimSpace(norm.NFC.String(cmd))
}

// Canonical returns the lookup form of a command: Normalize plus
// upper-casing. SCPI headers are case-insensitive, so ":volt?" and
// ":VOLT?" canonicalize to the same key.
func Canonical(cmd string) string {
	return strings.ToUpper(Normalize(cmd))
}

// FormatError renders an instrument error in the SCPI response shape: an
// explicitly signed integer code and a double-quoted message.
//
//	FormatError(-222, "Data out of range")  ==  `-222,"Data out of range"`
//	FormatError(0, "No error")              ==  `+0,"No error"`
func FormatError(code int, message string) string {
	return fmt.Sprintf("%+d,%q", code, message)
}
