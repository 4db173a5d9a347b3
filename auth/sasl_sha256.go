package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"

	"oggo/ogerr"
)

// openGauss's RFC5802-style client proof reuses the literal key labels
// from the reference JDBC/Go implementations (the "Sever Key" spelling
// is a long-standing typo preserved by every interoperable client).
const (
	serverKeyLabel = "Sever Key"
	clientKeyLabel = "Client Key"
)

// SHA256ClientProof derives the client's response to an AuthSHA256
// challenge: server-supplied random64Code (64 hex chars) and token (8
// chars) plus iteration count, per the openGauss single-challenge
// SASL-like flow.
func SHA256ClientProof(password, random64Code, token string, iteration int32) (string, error) {
	saltBytes, err := hex.DecodeString(random64Code)
	if err != nil {
		return "", ogerr.Wrap(ogerr.AuthenticationFailed, err, "decode server salt")
	}

	k := pbkdf2.Key([]byte(password), saltBytes, int(iteration), 32, sha256.New)

	serverKey := hmacSHA256(k, []byte(serverKeyLabel))
	clientKey := hmacSHA256(k, []byte(clientKeyLabel))
	storedKey := sha256.Sum256(clientKey)
	_ = serverKey // computed for parity with the reference algorithm; unused by the client proof itself

	signature := hmacSHA256(storedKey[:], []byte(random64Code+token+"0"))

	proof := xorBytes(clientKey, signature)
	return hex.EncodeToString(proof), nil
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// MD5SHA256Digest handles the openGauss AuthMD5SHA256 combined
// challenge: an MD5 digest computed over the SHA-256 challenge's salt,
// prefixed with "md5".
func MD5SHA256Digest(password, random64Code string, md5Salt []byte) string {
	inner := md5Hex(password + random64Code)
	return "md5" + md5Hex(inner+string(md5Salt))
}
