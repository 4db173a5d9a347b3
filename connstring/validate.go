package connstring

import "oggo/ogerr"

// Validate applies the connection string's validation rules to an
// already-parsed Config.
func Validate(c *Config) error {
	if len(c.Hosts) == 0 {
		return ogerr.New(ogerr.ConfigurationInvalid, "Host is required")
	}
	if c.Multiplexing && !c.Pooling {
		return ogerr.New(ogerr.ConfigurationInvalid, "Multiplexing requires Pooling=true")
	}
	if c.SslMode == SslRequire && !c.TrustServerCertificate {
		err := ogerr.New(ogerr.ConfigurationInvalid,
			"SslMode=Require with TrustServerCertificate=false must use VerifyCA/VerifyFull or set TrustServerCertificate explicitly")
		return ogerr.WithHint(err, "set SslMode=VerifyCA, SslMode=VerifyFull, or TrustServerCertificate=true")
	}
	if c.TrustServerCertificate {
		switch c.SslMode {
		case SslAllow, SslVerifyCA, SslVerifyFull:
			return ogerr.Newf(ogerr.ConfigurationInvalid,
				"TrustServerCertificate=true is incompatible with SslMode=%s", c.SslMode)
		}
	}
	if c.MinPoolSize < 0 || c.MaxPoolSize < 0 {
		return ogerr.New(ogerr.ConfigurationInvalid, "pool sizes must be non-negative")
	}
	if c.MaxPoolSize > 0 && c.MinPoolSize > c.MaxPoolSize {
		return ogerr.New(ogerr.ConfigurationInvalid, "MinPoolSize must not exceed MaxPoolSize")
	}
	if c.Database == "" {
		return ogerr.New(ogerr.ConfigurationInvalid, "Database (or Username as fallback) is required")
	}
	return nil
}
