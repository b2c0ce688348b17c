// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ezrec/mipsim/memory"
)

// Radix selects how inspected values are displayed.
type Radix int

//go:generate go tool stringer -linecomment -type=Radix
const (
	RADIX_HEX     = Radix(0) // hex
	RADIX_DECIMAL = Radix(1) // dec
	RADIX_ASCII   = Radix(2) // ascii
)

// ParseRadix finds a radix by name.
func ParseRadix(name string) (radix Radix, err error) {
	for radix = RADIX_HEX; radix <= RADIX_ASCII; radix++ {
		if radix.String() == name {
			return
		}
	}

	err = &memory.ErrConfiguration{Name: name, Err: ErrRadixUnknown}
	return
}

// Format displays a word in a radix. Decimal is signed; ascii shows the
// bytes from most to least significant, with unprintable bytes as '.'.
func Format(value uint32, radix Radix) string {
	switch radix {
	case RADIX_DECIMAL:
		return strconv.Itoa(int(int32(value)))
	case RADIX_ASCII:
		var text strings.Builder
		for shift := 24; shift >= 0; shift -= 8 {
			c := byte(value >> shift)
			if c < ' ' || c > '~' {
				c = '.'
			}
			text.WriteByte(c)
		}
		return text.String()
	default:
		return fmt.Sprintf("0x%08x", value)
	}
}
