// Package reftrace runs the reference instruction-set simulator and
// folds its commit log into an architectural snapshot comparable
// against the hardware model's.
package reftrace

import (
	"strconv"
	"strings"
)

// parseRegWrite extracts a register-write event from one commit-log
// line. Two layouts occur in the wild: "x N (hex)" with the index as a
// separate token, and "xN hex" with the index fused to the prefix.
func parseRegWrite(line string) (idx uint8, value uint32, ok bool) {
	parts := strings.Fields(line)

	for i, part := range parts {
		if part == "x" && i+2 < len(parts) {
			reg, err := strconv.ParseUint(parts[i+1], 10, 8)
			if err != nil {
				continue
			}
			if v, ok := parseHex(parts[i+2]); ok {
				return uint8(reg), v, true
			}
		}

		if rest, found := strings.CutPrefix(part, "x"); found && rest != "" {
			reg, err := strconv.ParseUint(rest, 10, 8)
			if err != nil || i+1 >= len(parts) {
				continue
			}
			if v, ok := parseHex(parts[i+1]); ok {
				return uint8(reg), v, true
			}
		}
	}
	return 0, 0, false
}

// parseMemAccess extracts the address of a memory-access event
// ("mem <hex> ...") from one commit-log line.
func parseMemAccess(line string) (addr uint32, ok bool) {
	parts := strings.Fields(line)
	for i, part := range parts {
		if part == "mem" && i+1 < len(parts) {
			if v, ok := parseHex(parts[i+1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// parseHex parses a hex token, tolerating surrounding parentheses and a
// 0x prefix.
func parseHex(token string) (uint32, bool) {
	trimmed := strings.TrimPrefix(token, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
