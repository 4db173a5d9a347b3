package connstring

import "github.com/jackc/pgpassfile"

// lookupPassfile resolves a password from a ~/.pgpass-formatted file
// using the real jackc/pgpassfile parser. Any read/parse error, or a
// miss, yields the empty string — password lookup is best-effort, never
// fatal, matching libpq's own behavior.
func lookupPassfile(path, host, port, database, username string) string {
	pf, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return ""
	}
	return pf.FindPassword(host, port, database, username)
}
