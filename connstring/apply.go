package connstring

import (
	"strconv"

	"oggo/ogerr"
)

// apply is an explicit switch on canonical key in place of a reflective
// setter: each case produces a typed update plus validation, never a
// dynamic field assignment.
func (c *Config) apply(canon, value string) error {
	switch canon {
	case KeyHost:
		if IsUnixSocketPath(value) {
			c.UnixSocket = true
			c.Hosts = []HostSpec{{Host: value, Port: 0}}
			return nil
		}
		port := 5432
		if len(c.Hosts) > 0 {
			port = c.Hosts[0].Port
		}
		hosts, err := parseHosts(value, port)
		if err != nil {
			return err
		}
		c.Hosts = hosts
	case KeyPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid Port")
		}
		if len(c.Hosts) == 0 {
			c.Hosts = []HostSpec{{Port: port}}
		} else {
			for i := range c.Hosts {
				c.Hosts[i].Port = port
			}
		}
	case KeyDatabase:
		c.Database = value
	case KeyUsername:
		c.Username = value
	case KeyPassword:
		c.Password = value
	case KeyPassfile:
		c.Passfile = value
	case KeySslMode:
		c.SslMode = SslMode(normalizeEnumTitle(value))
	case KeyTrustServerCertificate:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.TrustServerCertificate = b
	case KeySslCertificate:
		c.SslCertificate = value
	case KeySslKey:
		c.SslKey = value
	case KeySslPassword:
		c.SslPassword = value
	case KeyRootCertificate:
		c.RootCertificate = value
	case KeyCheckCertificateRevocation:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.CheckCertificateRevocation = b
	case KeyTimeout:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.Timeout = d
	case KeyCommandTimeout:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.CommandTimeout = d
	case KeyInternalCommandTimeout:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.InternalCommandTimeout = d
	case KeyCancellationTimeout:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid CancellationTimeout")
		}
		c.CancellationTimeoutMs = n
	case KeyKeepAlive:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.KeepAlive = d
	case KeyTcpKeepAlive:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.TcpKeepAlive = b
	case KeyTcpKeepAliveTime:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.TcpKeepAliveTime = d
	case KeyTcpKeepAliveInterval:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.TcpKeepAliveInterval = d
	case KeyReadBufferSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid ReadBufferSize")
		}
		c.ReadBufferSize = n
	case KeyWriteBufferSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid WriteBufferSize")
		}
		c.WriteBufferSize = n
	case KeySocketReceiveBufferSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.SocketReceiveBufferSize = n
	case KeySocketSendBufferSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.SocketSendBufferSize = n
	case KeyPooling:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.Pooling = b
	case KeyMinPoolSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid MinPoolSize")
		}
		c.MinPoolSize = n
	case KeyMaxPoolSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid MaxPoolSize")
		}
		c.MaxPoolSize = n
	case KeyConnectionIdleLifetime:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.ConnectionIdleLifetime = d
	case KeyConnectionPruningInterval:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.ConnectionPruningInterval = d
	case KeyConnectionLifetime:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		c.ConnectionLifetime = d
	case KeyMaxAutoPrepare:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.MaxAutoPrepare = n
	case KeyAutoPrepareMinUsages:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.AutoPrepareMinUsages = n
	case KeyNoResetOnClose:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.NoResetOnClose = b
	case KeyMultiplexing:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.Multiplexing = b
	case KeyWriteCoalescingBufferThreshold:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.WriteCoalescingBufferThresholdBytes = n
	case KeyLoadBalanceHosts:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.LoadBalanceHosts = b
	case KeyHostRecheckSeconds:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.HostRecheckSeconds = n
	case KeyTargetSessionAttributes:
		c.TargetSessionAttributes = TargetSessionAttributes(value).Normalize()
	case KeyServerCompatibilityMode:
		c.ServerCompatibilityMode = ServerCompatibilityMode(normalizeEnumTitle(value))
	case KeyIncludeErrorDetail:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.IncludeErrorDetail = b
	case KeyLogParameters:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.LogParameters = b
	case KeyApplicationName:
		c.ApplicationName = value
	case KeyClientEncoding:
		c.ClientEncoding = value
	case KeySearchPath:
		c.SearchPath = value
	case KeyTimeZone:
		c.TimeZone = value
	case KeyOptions:
		c.Options = value
	}
	return nil
}

// normalizeEnumTitle title-cases a free-form enum value ("require" ->
// "Require") so callers may write connection strings in any case.
func normalizeEnumTitle(s string) string {
	known := map[string]string{
		"disable": "Disable", "allow": "Allow", "prefer": "Prefer",
		"require": "Require", "verifyca": "VerifyCA", "verifyfull": "VerifyFull",
		"none": "None", "redshift": "Redshift", "notypeloading": "NoTypeLoading",
	}
	if canon, ok := known[toLower(s)]; ok {
		return canon
	}
	return s
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
