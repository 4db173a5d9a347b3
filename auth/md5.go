// Package auth implements the frontend side of the connector's
// authentication sub-protocol: cleartext, MD5, the openGauss SHA-256
// (single-challenge, PBKDF2-HMAC-SHA256) flow, and an opaque GSS/SSPI
// token exchange the caller drives via an injected provider. Grounded on
// opengauss-mirror-openGauss-connector-go-pq's conn.go auth switch and
// usernameisnull-gaussdb-go's scramSha256Auth call sites.
package auth

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Digest computes "md5" + hex(md5(md5(password+username)+salt)), the
// literal string sent as the password response to an AuthMD5Password
// challenge.
func MD5Digest(username, password string, salt []byte) string {
	inner := md5Hex(password + username)
	outer := md5Hex(inner + string(salt))
	return "md5" + outer
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
