// Package connstring parses and validates the driver's connection
// string: a case-insensitive, synonym-tolerant mapping of canonical keys
// to typed values, consulting PGPASSFILE/pg_service.conf and PG*
// environment variables the way libpq does. The dynamic parameter
// dictionary is modeled as a tagged-value map with a case-folded
// canonicalizer built from the hand-written canonical key list — an
// explicit switch on canonical key, not a reflective setter.
package connstring

import "strings"

// canonical keys
const (
	KeyHost                            = "Host"
	KeyPort                            = "Port"
	KeyDatabase                        = "Database"
	KeyUsername                        = "Username"
	KeyPassword                        = "Password"
	KeyPassfile                        = "Passfile"
	KeySslMode                         = "SslMode"
	KeyTrustServerCertificate          = "TrustServerCertificate"
	KeySslCertificate                  = "SslCertificate"
	KeySslKey                          = "SslKey"
	KeySslPassword                     = "SslPassword"
	KeyRootCertificate                 = "RootCertificate"
	KeyCheckCertificateRevocation      = "CheckCertificateRevocation"
	KeyTimeout                         = "Timeout"
	KeyCommandTimeout                  = "CommandTimeout"
	KeyInternalCommandTimeout          = "InternalCommandTimeout"
	KeyCancellationTimeout             = "CancellationTimeout"
	KeyKeepAlive                       = "KeepAlive"
	KeyTcpKeepAlive                    = "TcpKeepAlive"
	KeyTcpKeepAliveTime                = "TcpKeepAliveTime"
	KeyTcpKeepAliveInterval            = "TcpKeepAliveInterval"
	KeyReadBufferSize                  = "ReadBufferSize"
	KeyWriteBufferSize                 = "WriteBufferSize"
	KeySocketReceiveBufferSize         = "SocketReceiveBufferSize"
	KeySocketSendBufferSize            = "SocketSendBufferSize"
	KeyPooling                         = "Pooling"
	KeyMinPoolSize                     = "MinPoolSize"
	KeyMaxPoolSize                     = "MaxPoolSize"
	KeyConnectionIdleLifetime          = "ConnectionIdleLifetime"
	KeyConnectionPruningInterval       = "ConnectionPruningInterval"
	KeyConnectionLifetime              = "ConnectionLifetime"
	KeyMaxAutoPrepare                  = "MaxAutoPrepare"
	KeyAutoPrepareMinUsages            = "AutoPrepareMinUsages"
	KeyNoResetOnClose                  = "NoResetOnClose"
	KeyMultiplexing                    = "Multiplexing"
	KeyWriteCoalescingBufferThreshold  = "WriteCoalescingBufferThresholdBytes"
	KeyLoadBalanceHosts                = "LoadBalanceHosts"
	KeyHostRecheckSeconds              = "HostRecheckSeconds"
	KeyTargetSessionAttributes         = "TargetSessionAttributes"
	KeyServerCompatibilityMode         = "ServerCompatibilityMode"
	KeyIncludeErrorDetail              = "IncludeErrorDetail"
	KeyLogParameters                   = "LogParameters"
	KeyApplicationName                 = "ApplicationName"
	KeyClientEncoding                  = "ClientEncoding"
	KeySearchPath                      = "SearchPath"
	KeyTimeZone                        = "TimeZone"
	KeyOptions                         = "Options"
)

// synonyms maps a lower-cased alias to its canonical key.
var synonyms = map[string]string{
	"server":                   KeyHost,
	"db":                       KeyDatabase,
	"user id":                  KeyUsername,
	"userid":                   KeyUsername,
	"uid":                      KeyUsername,
	"user":                     KeyUsername,
	"pwd":                      KeyPassword,
	"load balance timeout":     KeyConnectionLifetime,
	"loadbalancetimeout":       KeyConnectionLifetime,
}

// canonicalKeys lists every canonical key in lower-cased form, so the
// canonicalizer is a single map lookup rather than a chain of string
// comparisons.
var canonicalKeys = buildCanonicalKeys()

func buildCanonicalKeys() map[string]string {
	m := map[string]string{}
	for _, k := range []string{
		KeyHost, KeyPort, KeyDatabase, KeyUsername, KeyPassword, KeyPassfile,
		KeySslMode, KeyTrustServerCertificate, KeySslCertificate, KeySslKey,
		KeySslPassword, KeyRootCertificate, KeyCheckCertificateRevocation,
		KeyTimeout, KeyCommandTimeout, KeyInternalCommandTimeout, KeyCancellationTimeout,
		KeyKeepAlive, KeyTcpKeepAlive, KeyTcpKeepAliveTime, KeyTcpKeepAliveInterval,
		KeyReadBufferSize, KeyWriteBufferSize, KeySocketReceiveBufferSize, KeySocketSendBufferSize,
		KeyPooling, KeyMinPoolSize, KeyMaxPoolSize, KeyConnectionIdleLifetime,
		KeyConnectionPruningInterval, KeyConnectionLifetime, KeyMaxAutoPrepare,
		KeyAutoPrepareMinUsages, KeyNoResetOnClose, KeyMultiplexing,
		KeyWriteCoalescingBufferThreshold, KeyLoadBalanceHosts, KeyHostRecheckSeconds,
		KeyTargetSessionAttributes, KeyServerCompatibilityMode, KeyIncludeErrorDetail,
		KeyLogParameters, KeyApplicationName, KeyClientEncoding, KeySearchPath,
		KeyTimeZone, KeyOptions,
	} {
		m[strings.ToLower(k)] = k
	}
	return m
}

// canonicalize resolves an arbitrary-cased key or synonym to its
// canonical form, returning ok=false for unrecognized keys.
func canonicalize(key string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(key))
	if canon, ok := synonyms[lower]; ok {
		return canon, true
	}
	if canon, ok := canonicalKeys[lower]; ok {
		return canon, true
	}
	return "", false
}
