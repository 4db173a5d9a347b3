package connstring

import (
	"os"
	"strconv"
	"strings"
	"time"

	"oggo/ogerr"
	"oggo/version"
)

// SslMode selects the TLS negotiation policy.
type SslMode string

const (
	SslDisable    SslMode = "Disable"
	SslAllow      SslMode = "Allow"
	SslPrefer     SslMode = "Prefer"
	SslRequire    SslMode = "Require"
	SslVerifyCA   SslMode = "VerifyCA"
	SslVerifyFull SslMode = "VerifyFull"
)

// TargetSessionAttributes selects which host role a rent must land on.
type TargetSessionAttributes string

const (
	TargetAny           TargetSessionAttributes = "any"
	TargetPrimary       TargetSessionAttributes = "primary"
	TargetStandby       TargetSessionAttributes = "standby"
	TargetPreferPrimary TargetSessionAttributes = "prefer-primary"
	TargetPreferStandby TargetSessionAttributes = "prefer-standby"
	TargetReadWrite     TargetSessionAttributes = "read-write"
	TargetReadOnly      TargetSessionAttributes = "read-only"
)

// Normalize maps the read-write/read-only synonyms (accepted by real
// clients such as jackc/pgx) onto primary/standby.
func (t TargetSessionAttributes) Normalize() TargetSessionAttributes {
	switch t {
	case TargetReadWrite:
		return TargetPrimary
	case TargetReadOnly:
		return TargetStandby
	case "":
		return TargetAny
	default:
		return t
	}
}

// ServerCompatibilityMode selects protocol dialect quirks.
type ServerCompatibilityMode string

const (
	CompatNone        ServerCompatibilityMode = "None"
	CompatRedshift    ServerCompatibilityMode = "Redshift"
	CompatNoTypeLoad  ServerCompatibilityMode = "NoTypeLoading"
)

// HostSpec is one entry of a comma-separated Host list.
type HostSpec struct {
	Host string
	Port int
}

// Config is the parsed, validated, immutable-once-built connection
// string. Zero value is not meaningful; use Parse or Defaults().
type Config struct {
	Hosts      []HostSpec
	UnixSocket bool

	Database string
	Username string
	Password string
	Passfile string

	SslMode                     SslMode
	TrustServerCertificate      bool
	SslCertificate              string
	SslKey                      string
	SslPassword                 string
	RootCertificate             string
	CheckCertificateRevocation  bool

	Timeout                time.Duration
	CommandTimeout         time.Duration
	InternalCommandTimeout time.Duration
	CancellationTimeoutMs  int
	KeepAlive              time.Duration
	TcpKeepAlive           bool
	TcpKeepAliveTime       time.Duration
	TcpKeepAliveInterval   time.Duration

	ReadBufferSize             int
	WriteBufferSize            int
	SocketReceiveBufferSize    int
	SocketSendBufferSize       int

	Pooling                    bool
	MinPoolSize                int
	MaxPoolSize                int
	ConnectionIdleLifetime     time.Duration
	ConnectionPruningInterval  time.Duration
	ConnectionLifetime         time.Duration

	MaxAutoPrepare       int
	AutoPrepareMinUsages int
	NoResetOnClose       bool

	Multiplexing                        bool
	WriteCoalescingBufferThresholdBytes int

	LoadBalanceHosts        bool
	HostRecheckSeconds      int
	TargetSessionAttributes TargetSessionAttributes
	ServerCompatibilityMode ServerCompatibilityMode

	IncludeErrorDetail bool
	LogParameters      bool

	ApplicationName string
	ClientEncoding  string
	SearchPath      string
	TimeZone        string
	Options         string

	raw map[string]string
}

// Defaults returns a Config populated with every documented default, and
// no hosts/username set (both required).
func Defaults() *Config {
	return &Config{
		SslMode:                    SslPrefer,
		Timeout:                    15 * time.Second,
		CommandTimeout:             30 * time.Second,
		CancellationTimeoutMs:      2000,
		KeepAlive:                  0,
		ReadBufferSize:             8192,
		WriteBufferSize:            8192,
		Pooling:                    true,
		MinPoolSize:                0,
		MaxPoolSize:                100,
		ConnectionIdleLifetime:     300 * time.Second,
		ConnectionPruningInterval:  10 * time.Second,
		ConnectionLifetime:         0,
		MaxAutoPrepare:             0,
		AutoPrepareMinUsages:       5,
		WriteCoalescingBufferThresholdBytes: 1000,
		HostRecheckSeconds:         10,
		TargetSessionAttributes:    TargetAny,
		ServerCompatibilityMode:    CompatNone,
		ApplicationName:            version.String(),
		raw:                        map[string]string{},
	}
}

// Raw returns the canonical-key/original-value pairs Parse consumed to
// build this Config, used by the pool registry to key pools by connection
// string identity.
func (c *Config) Raw() map[string]string { return c.raw }

// EffectiveInternalCommandTimeout returns InternalCommandTimeout if set,
// else CommandTimeout floored at 3s.
func (c *Config) EffectiveInternalCommandTimeout() time.Duration {
	if c.InternalCommandTimeout > 0 {
		return c.InternalCommandTimeout
	}
	if c.CommandTimeout < 3*time.Second {
		return 3 * time.Second
	}
	return c.CommandTimeout
}

// LookupPassword resolves the password to use for the given host/port,
// consulting the explicit Password field first, then a Passfile / the
// PGPASSFILE environment variable / ~/.pgpass via jackc/pgpassfile.
func (c *Config) LookupPassword(host string, port int) string {
	if c.Password != "" {
		return c.Password
	}
	path := c.Passfile
	if path == "" {
		path = os.Getenv("PGPASSFILE")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + "/.pgpass"
		}
	}
	if path == "" {
		return ""
	}
	return lookupPassfile(path, host, strconv.Itoa(port), c.Database, c.Username)
}

// envOr reads a PG*-style environment variable fallback the way libpq
// does when a connection string omits a key.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, ogerr.Newf(ogerr.ConfigurationInvalid, "invalid boolean value %q", s)
}

func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid integer seconds %q", s)
	}
	return time.Duration(n) * time.Second, nil
}
