package connstring

import (
	"os"

	"github.com/jackc/pgservicefile"
)

// servicefilePath resolves the pg_service.conf path: an explicit
// "servicefile" key, then PGSERVICEFILE, then the libpq default
// location.
func servicefilePath(pairs map[string]string) string {
	if p, ok := pairs["servicefile"]; ok {
		return p
	}
	if p := os.Getenv("PGSERVICEFILE"); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.pg_service.conf"
	}
	return ""
}

// lookupServicefile resolves a named service's settings via the real
// jackc/pgservicefile parser.
func lookupServicefile(path, service string) (map[string]string, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	sf, err := pgservicefile.ReadServicefile(path)
	if err != nil {
		return nil, err
	}
	svc, err := sf.GetService(service)
	if err != nil {
		return nil, err
	}
	return svc.Settings, nil
}
