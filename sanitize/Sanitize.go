/*
File Name:  Sanitize.go

Input sanitization for values that cross process boundaries into logs or
wire messages. Ported from the teacher's file-transfer path/username
sanitizers, narrowed to the one user-supplied string QuantumGate carries:
an extender's display name (§4.7).
*/

package sanitize

import (
	"strings"
	"unicode/utf8"
)

// displayNameMaxLength bounds an extender's display name so a misbehaving
// or malicious extender can't blow up logs or ExtenderUpdate broadcasts.
const displayNameMaxLength = 64

// ExtenderDisplayName trims, strips newlines, and bounds the length of an
// extender's display name before it is registered or broadcast.
func ExtenderDisplayName(input string) string {
	if !utf8.ValidString(input) {
		return "<invalid encoding>"
	}

	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\n", " ")
	input = strings.ReplaceAll(input, "\r", "")

	if len(input) > displayNameMaxLength {
		input = input[:displayNameMaxLength]
	}

	return input
}
