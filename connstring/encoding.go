package connstring

import "golang.org/x/text/encoding/ianaindex"

// CanonicalEncodingName resolves a client_encoding value (e.g. "UTF8",
// the PostgreSQL spelling) to its IANA-registered name ("UTF-8") using
// golang.org/x/text, so the value sent in the startup packet matches
// what the server's encoding tables expect. Unknown names are passed
// through unchanged — the server, not the client, is authoritative.
func CanonicalEncodingName(name string) string {
	if name == "" {
		return "UTF8"
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return name
	}
	canon, err := ianaindex.IANA.Name(enc)
	if err != nil || canon == "" {
		return name
	}
	return canon
}
