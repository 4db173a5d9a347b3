package oggo

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"oggo/connector"
	"oggo/protocol"
)

// oidInt8, oidFloat8, oidBool, oidBytea, and oidTimestampTZ are the type
// OIDs used to hint the server about text-encoded parameter types; 0 lets
// the server infer the type from context instead.
const (
	oidInt8        = 20
	oidFloat8      = 701
	oidBool        = 16
	oidBytea       = 17
	oidTimestampTZ = 1184
)

// convertArgs turns database/sql's already-converted argument values into
// wire-ready connector.Param values.
func convertArgs(args []driver.NamedValue) []connector.Param {
	if len(args) == 0 {
		return nil
	}
	params := make([]connector.Param, len(args))
	for i, a := range args {
		params[i] = convertValue(a.Value)
	}
	return params
}

// convertValue encodes one driver.Value in text format, except []byte
// which rides as a binary bytea — its wire encoding is just the raw
// bytes, so no escaping is needed. database/sql has already narrowed v to
// one of int64, float64, bool, []byte, string, time.Time, or nil via
// driver.DefaultParameterConverter.
func convertValue(v driver.Value) connector.Param {
	switch val := v.(type) {
	case nil:
		return connector.Param{Format: protocol.FormatText}
	case int64:
		return connector.Param{Value: []byte(strconv.FormatInt(val, 10)), Format: protocol.FormatText, OID: oidInt8}
	case float64:
		return connector.Param{Value: []byte(strconv.FormatFloat(val, 'g', -1, 64)), Format: protocol.FormatText, OID: oidFloat8}
	case bool:
		s := "f"
		if val {
			s = "t"
		}
		return connector.Param{Value: []byte(s), Format: protocol.FormatText, OID: oidBool}
	case []byte:
		return connector.Param{Value: val, Format: protocol.FormatBinary, OID: oidBytea}
	case string:
		return connector.Param{Value: []byte(val), Format: protocol.FormatText}
	case time.Time:
		return connector.Param{Value: []byte(val.UTC().Format("2006-01-02 15:04:05.999999999Z07:00")), Format: protocol.FormatText, OID: oidTimestampTZ}
	default:
		return connector.Param{Value: []byte(fmt.Sprintf("%v", val)), Format: protocol.FormatText}
	}
}

// valuesToNamed adapts the legacy driver.Value slice from Stmt.Exec/Query
// into driver.NamedValue for the *Context implementations to share one
// code path.
func valuesToNamed(args []driver.Value) []driver.NamedValue {
	if len(args) == 0 {
		return nil
	}
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}
