// Package pgtype implements the two wire-adjacent value types the core
// needs to speak the replication and interval sub-protocols correctly:
// LSN (log sequence number) and Interval. Everything else (numeric,
// timestamp, arrays, ...) is out of the core's scope — the connector
// hands raw bytes to an external encode/decode pair.
package pgtype

import (
	"fmt"
	"strconv"
	"strings"

	"oggo/ogerr"
)

// LSN is a 64-bit monotonic write-ahead-log position.
type LSN uint64

// String renders the LSN as "%X/%X" (upper 32 bits / lower 32 bits,
// uppercase hex, no padding), matching the wire's textual LSN format.
func (l LSN) String() string {
	return fmt.Sprintf("%X/%X", uint32(l>>32), uint32(l))
}

// ParseLSN parses the "%X/%X" format, accepting case-insensitive hex.
func ParseLSN(s string) (LSN, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, ogerr.Newf(ogerr.ConfigurationInvalid, "invalid LSN %q: expected HEX/HEX", s)
	}
	hi, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid LSN high half %q", parts[0])
	}
	lo, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid LSN low half %q", parts[1])
	}
	return LSN(hi<<32 | lo), nil
}
