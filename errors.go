package oggo

import "errors"

var ogerrLastInsertIDUnsupported = errors.New("oggo: LastInsertId is not supported, use RETURNING")

var ogerrUnsupportedIsolation = errors.New("oggo: only the server default isolation level is supported")
