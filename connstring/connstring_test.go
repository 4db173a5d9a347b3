package connstring

import "testing"

func TestParseKeywordValue(t *testing.T) {
	cfg, err := Parse("Host=localhost;Port=5432;Username=u;Password=p;Database=d;Timeout=5")
	// keyword=value DSNs in this driver use whitespace as the separator;
	// exercise that shape explicitly too.
	if err == nil {
		t.Fatalf("expected error for ';'-separated pairs treated as a single token")
	}

	cfg, err = Parse("host=localhost port=5432 username=u password=p database=d timeout=5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].Host != "localhost" || cfg.Hosts[0].Port != 5432 {
		t.Fatalf("unexpected hosts: %+v", cfg.Hosts)
	}
	if cfg.Username != "u" || cfg.Password != "p" || cfg.Database != "d" {
		t.Fatalf("unexpected identity fields: %+v", cfg)
	}
	if cfg.Timeout.Seconds() != 5 {
		t.Fatalf("timeout = %v, want 5s", cfg.Timeout)
	}
}

func TestParseURL(t *testing.T) {
	cfg, err := Parse("postgres://u:p@localhost:5432/d?sslmode=require&TrustServerCertificate=true")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Username != "u" || cfg.Password != "p" || cfg.Database != "d" {
		t.Fatalf("unexpected identity fields: %+v", cfg)
	}
	if cfg.SslMode != SslRequire || !cfg.TrustServerCertificate {
		t.Fatalf("unexpected TLS fields: %+v", cfg)
	}
}

func TestHostRequired(t *testing.T) {
	if _, err := Parse("username=u database=d"); err == nil {
		t.Fatal("expected error for missing Host")
	}
}

func TestMultiplexingRequiresPooling(t *testing.T) {
	_, err := Parse("host=localhost username=u database=d pooling=false multiplexing=true")
	if err == nil {
		t.Fatal("expected error: Multiplexing requires Pooling")
	}
}

func TestSslRequireNeedsTrustDecision(t *testing.T) {
	_, err := Parse("host=localhost username=u database=d sslmode=require")
	if err == nil {
		t.Fatal("expected error: SslMode=Require needs TrustServerCertificate or Verify*")
	}

	cfg, err := Parse("host=localhost username=u database=d sslmode=verifyfull")
	if err != nil {
		t.Fatalf("VerifyFull should be accepted without TrustServerCertificate: %v", err)
	}
	if cfg.SslMode != SslVerifyFull {
		t.Fatalf("sslmode = %v", cfg.SslMode)
	}
}

func TestTrustServerCertificateIncompatibleWithVerify(t *testing.T) {
	_, err := Parse("host=localhost username=u database=d sslmode=verifyca trustservercertificate=true")
	if err == nil {
		t.Fatal("expected incompatibility error")
	}
}

func TestUnixSocketPath(t *testing.T) {
	cfg, err := Parse("host=/var/run/postgresql username=u database=d port=5433")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.UnixSocket {
		t.Fatal("expected UnixSocket = true")
	}
	file := UnixSocketFile(cfg.Hosts[0].Host, 5433)
	if file != "/var/run/postgresql/.s.PGSQL.5433" {
		t.Fatalf("unexpected socket file: %q", file)
	}
}

func TestAbstractNamespaceSocket(t *testing.T) {
	file := UnixSocketFile("@mysock", 5432)
	if file[0] != 0 {
		t.Fatalf("expected leading NUL, got %q", file)
	}
	if file[1:] != "mysock/.s.PGSQL.5432" {
		t.Fatalf("unexpected socket file: %q", file[1:])
	}
}

func TestSynonymsResolve(t *testing.T) {
	cfg, err := Parse("server=localhost uid=u db=d")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Username != "u" || cfg.Database != "d" || len(cfg.Hosts) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestTargetSessionAttributesSynonyms(t *testing.T) {
	cfg, err := Parse("host=localhost username=u database=d targetsessionattributes=read-write")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TargetSessionAttributes != TargetPrimary {
		t.Fatalf("read-write should normalize to primary, got %v", cfg.TargetSessionAttributes)
	}
}
