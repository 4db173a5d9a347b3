// Package protocol implements the PostgreSQL/openGauss frontend/backend
// wire protocol version 3.0: a length-prefixed, type-tagged frame codec
// (ReadBuffer/WriteBuffer) plus typed encoders for frontend messages and
// typed decoders for backend messages. The package does not interpret
// command semantics — that is the connector's job.
package protocol

// ProtocolVersion is protocol version 3.0, encoded as (major<<16 | minor).
const ProtocolVersion int32 = 3 << 16

// SSLRequestCode is the special "version" sent in an SSLRequest, which
// looks like a startup message but precedes the real one.
const SSLRequestCode int32 = 80877103

// CancelRequestCode is the special "version" sent in a CancelRequest.
const CancelRequestCode int32 = 80877102

// Frontend (client → server) message tags.
const (
	TagBind            byte = 'B'
	TagClose           byte = 'C'
	TagCopyData        byte = 'd'
	TagCopyDone        byte = 'c'
	TagCopyFail        byte = 'f'
	TagDescribe        byte = 'D'
	TagExecute         byte = 'E'
	TagFlush           byte = 'H'
	TagParse           byte = 'P'
	TagPasswordMessage byte = 'p'
	TagQuery           byte = 'Q'
	TagSync            byte = 'S'
	TagTerminate       byte = 'X'
)

// Backend (server → client) message tags.
const (
	TagAuthentication     byte = 'R'
	TagBackendKeyData     byte = 'K'
	TagBindComplete       byte = '2'
	TagCloseComplete      byte = '3'
	TagCommandComplete    byte = 'C'
	TagCopyBothResponse   byte = 'W'
	TagCopyInResponse     byte = 'G'
	TagCopyOutResponse    byte = 'H'
	TagDataRow            byte = 'D'
	TagEmptyQueryResponse byte = 'I'
	TagErrorResponse      byte = 'E'
	TagNoData             byte = 'n'
	TagNoticeResponse     byte = 'N'
	TagNotificationResp   byte = 'A'
	TagParameterDesc      byte = 't'
	TagParameterStatus    byte = 'S'
	TagParseComplete      byte = '1'
	TagPortalSuspended    byte = 's'
	TagReadyForQuery      byte = 'Z'
	TagRowDescription     byte = 'T'
)

// Authentication sub-message codes (carried inside a TagAuthentication body).
const (
	AuthOK                int32 = 0
	AuthKerberosV5        int32 = 2
	AuthCleartextPassword int32 = 3
	AuthMD5Password       int32 = 5
	AuthSCMCredential     int32 = 6
	AuthGSS               int32 = 7
	AuthGSSContinue       int32 = 8
	AuthSSPI              int32 = 9
	AuthSASL              int32 = 10
	AuthSASLContinue      int32 = 11
	AuthSASLFinal         int32 = 12
	// AuthSHA256 and AuthMD5SHA256 are openGauss extensions: a single
	// server-challenge SASL-like flow (not the multi-round SCRAM-SHA-256
	// mechanism negotiated via AuthSASL) and a combined MD5-then-SHA256
	// negotiation code respectively. Both live outside the codes
	// PostgreSQL itself assigns (0-12) so they never collide with AuthSASL.
	AuthSHA256    int32 = 10010
	AuthMD5SHA256 int32 = 10011
)

// openGauss password-stored-method codes nested inside an AuthSHA256 body.
const (
	PasswordStoredPlain  int32 = 0
	PasswordStoredMD5    int32 = 1
	PasswordStoredSHA256 int32 = 2
)

// Transaction status bytes carried by ReadyForQuery.
const (
	TxIdle   byte = 'I'
	TxInTx   byte = 'T'
	TxFailed byte = 'E'
)

// Replication sub-stream message tags (carried as CopyData payloads once a
// replication stream is started).
const (
	ReplTagXLogData         byte = 'w'
	ReplTagPrimaryKeepalive byte = 'k'
	ReplTagStandbyStatus    byte = 'r'
)
