package protocol

import (
	"oggo/ogerr"
)

// AuthenticationRequest is the decoded body of a TagAuthentication
// message: the sub-code plus whichever payload that code carries.
type AuthenticationRequest struct {
	Code int32

	// MD5: 4-byte salt.
	MD5Salt []byte

	// AuthSHA256 (openGauss): password-stored method plus salt/token/iteration.
	PasswordStoredMethod int32
	Random64Code         string
	Token                string
	Iteration            int32

	// GSS/SSPI/SASL: opaque continuation payload.
	Opaque []byte

	// SASL mechanism negotiation (AuthSASL): server-offered mechanism list.
	Mechanisms []string
}

// DecodeAuthentication decodes a TagAuthentication message body.
func DecodeAuthentication(body *ReadBuffer, bodyLen int) (*AuthenticationRequest, error) {
	code, err := body.ReadInt32()
	if err != nil {
		return nil, err
	}
	req := &AuthenticationRequest{Code: code}
	remaining := bodyLen - 4

	switch code {
	case AuthOK, AuthKerberosV5, AuthCleartextPassword, AuthSCMCredential:
		// no further payload
	case AuthMD5Password:
		salt, err := body.CopyBytes(4)
		if err != nil {
			return nil, err
		}
		req.MD5Salt = salt
	case AuthGSS, AuthSSPI:
		if remaining > 0 {
			b, err := body.CopyBytes(remaining)
			if err != nil {
				return nil, err
			}
			req.Opaque = b
		}
	case AuthGSSContinue:
		b, err := body.CopyBytes(remaining)
		if err != nil {
			return nil, err
		}
		req.Opaque = b
	case AuthSASL:
		for remaining > 0 {
			start := remaining
			m, err := body.ReadCString()
			if err != nil {
				return nil, err
			}
			if m == "" {
				remaining -= 1
				break
			}
			req.Mechanisms = append(req.Mechanisms, m)
			remaining = start - (len(m) + 1)
		}
	case AuthSASLContinue, AuthSASLFinal:
		if remaining > 0 {
			b, err := body.CopyBytes(remaining)
			if err != nil {
				return nil, err
			}
			req.Opaque = b
		}
	case AuthSHA256:
		method, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		req.PasswordStoredMethod = method
		switch method {
		case PasswordStoredPlain, PasswordStoredSHA256:
			random64, err := body.ReadString(64)
			if err != nil {
				return nil, err
			}
			token, err := body.ReadString(8)
			if err != nil {
				return nil, err
			}
			iter, err := body.ReadInt32()
			if err != nil {
				return nil, err
			}
			req.Random64Code, req.Token, req.Iteration = random64, token, iter
		case PasswordStoredMD5:
			salt, err := body.CopyBytes(4)
			if err != nil {
				return nil, err
			}
			req.MD5Salt = salt
		default:
			return nil, ogerr.Newf(ogerr.ProtocolViolation, "unsupported password-stored method %d", method)
		}
	case AuthMD5SHA256:
		random64, err := body.ReadString(64)
		if err != nil {
			return nil, err
		}
		salt, err := body.CopyBytes(4)
		if err != nil {
			return nil, err
		}
		req.Random64Code = random64
		req.MD5Salt = salt
	default:
		return nil, ogerr.Newf(ogerr.ProtocolViolation, "unknown authentication code %d", code)
	}
	return req, nil
}

// BackendKeyData carries the process ID and secret used for cancellation.
type BackendKeyData struct {
	PID    int32
	Secret int32
}

func DecodeBackendKeyData(body *ReadBuffer) (*BackendKeyData, error) {
	pid, err := body.ReadInt32()
	if err != nil {
		return nil, err
	}
	secret, err := body.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &BackendKeyData{PID: pid, Secret: secret}, nil
}

// ParameterStatus is a single server-reported GUC value.
type ParameterStatus struct {
	Name  string
	Value string
}

func DecodeParameterStatus(body *ReadBuffer) (*ParameterStatus, error) {
	name, err := body.ReadCString()
	if err != nil {
		return nil, err
	}
	value, err := body.ReadCString()
	if err != nil {
		return nil, err
	}
	return &ParameterStatus{Name: name, Value: value}, nil
}

// ReadyForQuery reports the server's idle transaction status.
type ReadyForQuery struct {
	TxStatus byte
}

func DecodeReadyForQuery(body *ReadBuffer) (*ReadyForQuery, error) {
	status, err := body.ReadByte()
	if err != nil {
		return nil, err
	}
	return &ReadyForQuery{TxStatus: status}, nil
}

// FieldDescription describes one result column.
type FieldDescription struct {
	Name             string
	TableOID         int32
	ColumnAttrNumber int16
	DataTypeOID      int32
	DataTypeSize     int16
	TypeModifier     int32
	Format           FieldFormat
}

// RowDescription lists the columns of an upcoming set of DataRows.
type RowDescription struct {
	Fields []FieldDescription
}

func DecodeRowDescription(body *ReadBuffer) (*RowDescription, error) {
	n, err := body.ReadInt16()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescription, n)
	for i := range fields {
		name, err := body.ReadCString()
		if err != nil {
			return nil, err
		}
		tableOID, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		attr, err := body.ReadInt16()
		if err != nil {
			return nil, err
		}
		typeOID, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		typeSize, err := body.ReadInt16()
		if err != nil {
			return nil, err
		}
		typeMod, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		format, err := body.ReadInt16()
		if err != nil {
			return nil, err
		}
		fields[i] = FieldDescription{
			Name: name, TableOID: tableOID, ColumnAttrNumber: attr,
			DataTypeOID: typeOID, DataTypeSize: typeSize, TypeModifier: typeMod,
			Format: FieldFormat(format),
		}
	}
	return &RowDescription{Fields: fields}, nil
}

// DataRow is one row of values, each nil for SQL NULL. DecodeDataRow
// copies each value out of the ReadBuffer (CopyBytes), so Values stay
// valid after the next read.
type DataRow struct {
	Values [][]byte
}

func DecodeDataRow(body *ReadBuffer) (*DataRow, error) {
	n, err := body.ReadInt16()
	if err != nil {
		return nil, err
	}
	values := make([][]byte, n)
	for i := range values {
		length, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			values[i] = nil
			continue
		}
		v, err := body.CopyBytes(int(length))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &DataRow{Values: values}, nil
}

// CommandComplete carries the server's command tag, e.g. "SELECT 1".
type CommandComplete struct {
	Tag string
}

func DecodeCommandComplete(body *ReadBuffer, bodyLen int) (*CommandComplete, error) {
	tag, err := body.ReadCString()
	if err != nil {
		return nil, err
	}
	return &CommandComplete{Tag: tag}, nil
}

// ParameterDescription lists the inferred OIDs of a prepared statement's
// parameters.
type ParameterDescription struct {
	OIDs []int32
}

func DecodeParameterDescription(body *ReadBuffer) (*ParameterDescription, error) {
	n, err := body.ReadInt16()
	if err != nil {
		return nil, err
	}
	oids := make([]int32, n)
	for i := range oids {
		v, err := body.ReadInt32()
		if err != nil {
			return nil, err
		}
		oids[i] = v
	}
	return &ParameterDescription{OIDs: oids}, nil
}

// ErrorOrNotice is the decoded field-tagged bag shared by ErrorResponse
// and NoticeResponse.
type ErrorOrNotice struct {
	Severity   string
	SQLState   string
	Message    string
	Detail     string
	Hint       string
	Position   string
	Where      string
	Schema     string
	Table      string
	Column     string
	DataType   string
	Constraint string
	File       string
	Line       string
	Routine    string
}

func DecodeErrorOrNotice(body *ReadBuffer, bodyLen int) (*ErrorOrNotice, error) {
	e := &ErrorOrNotice{}
	for {
		fieldType, err := body.ReadByte()
		if err != nil {
			return nil, err
		}
		if fieldType == 0 {
			break
		}
		value, err := body.ReadCString()
		if err != nil {
			return nil, err
		}
		switch fieldType {
		case 'S':
			e.Severity = value
		case 'C':
			e.SQLState = value
		case 'M':
			e.Message = value
		case 'D':
			e.Detail = value
		case 'H':
			e.Hint = value
		case 'P':
			e.Position = value
		case 'W':
			e.Where = value
		case 's':
			e.Schema = value
		case 't':
			e.Table = value
		case 'c':
			e.Column = value
		case 'd':
			e.DataType = value
		case 'n':
			e.Constraint = value
		case 'F':
			e.File = value
		case 'L':
			e.Line = value
		case 'R':
			e.Routine = value
		}
	}
	return e, nil
}

// CopyResponse describes a CopyIn/CopyOut/CopyBoth negotiation: overall
// format plus per-column formats.
type CopyResponse struct {
	OverallFormat  FieldFormat
	ColumnFormats  []FieldFormat
}

func DecodeCopyResponse(body *ReadBuffer) (*CopyResponse, error) {
	format, err := body.ReadByte()
	if err != nil {
		return nil, err
	}
	n, err := body.ReadInt16()
	if err != nil {
		return nil, err
	}
	cols := make([]FieldFormat, n)
	for i := range cols {
		f, err := body.ReadInt16()
		if err != nil {
			return nil, err
		}
		cols[i] = FieldFormat(f)
	}
	return &CopyResponse{OverallFormat: FieldFormat(format), ColumnFormats: cols}, nil
}

// NotificationResponse is an asynchronous LISTEN/NOTIFY payload.
type NotificationResponse struct {
	PID     int32
	Channel string
	Payload string
}

func DecodeNotificationResponse(body *ReadBuffer) (*NotificationResponse, error) {
	pid, err := body.ReadInt32()
	if err != nil {
		return nil, err
	}
	channel, err := body.ReadCString()
	if err != nil {
		return nil, err
	}
	payload, err := body.ReadCString()
	if err != nil {
		return nil, err
	}
	return &NotificationResponse{PID: pid, Channel: channel, Payload: payload}, nil
}
