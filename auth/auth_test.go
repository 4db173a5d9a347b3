package auth

import "testing"

func TestMD5DigestKnownValue(t *testing.T) {
	salt := []byte{0x01, 0x02, 0x03, 0x04}
	got := MD5Digest("u", "p", salt)
	inner := md5Hex("pu")
	want := "md5" + md5Hex(inner+string(salt))
	if got != want {
		t.Fatalf("MD5Digest = %q, want %q", got, want)
	}
	if len(got) != len("md5")+32 {
		t.Fatalf("unexpected digest length: %d", len(got))
	}
}

func TestSHA256ClientProofDeterministic(t *testing.T) {
	salt := "0011223344556677" + "0011223344556677" + "0011223344556677" + "0011223344556677"
	a, err := SHA256ClientProof("p", salt, "deadbeef", 2048)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	b, err := SHA256ClientProof("p", salt, "deadbeef", 2048)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if a != b {
		t.Fatalf("proof not deterministic: %q != %q", a, b)
	}
	c, err := SHA256ClientProof("different", salt, "deadbeef", 2048)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if a == c {
		t.Fatalf("proof did not vary with password")
	}
}
