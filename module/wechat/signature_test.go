package wechat

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"testing"
)

func signOf(parts ...string) string {
	sort.Strings(parts)
	joined := ""
	for _, p := range parts {
		joined += p
	}
	sum := sha1.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func TestSignatureVerify(t *testing.T) {
	v := NewSignatureVerifier("librechat")

	ts, nonce := "1724832000", "n-42"
	good := signOf("librechat", ts, nonce)

	if !v.Verify(good, ts, nonce) {
		t.Fatal("expected valid signature to verify")
	}
	if v.Verify(good, ts, "other-nonce") {
		t.Error("expected mismatched nonce to fail")
	}
	if v.Verify("deadbeef", ts, nonce) {
		t.Error("expected bogus signature to fail")
	}
}

// 三个输入串排序后拼接，入参顺序不影响结果
func TestSignaturePermutationInvariant(t *testing.T) {
	v := NewSignatureVerifier("tok")

	cases := [][2]string{
		{"111", "zzz"},
		{"zzz", "111"},
		{"abc", "abd"},
		{"", "x"},
	}
	for _, c := range cases {
		want := signOf("tok", c[0], c[1])
		if got := v.Sign(c[0], c[1]); got != want {
			t.Errorf("Sign(%q,%q) = %s, want %s", c[0], c[1], got, want)
		}
	}
}

// 大小写敏感：十六进制大写的同一摘要不算过
func TestSignatureCaseSensitive(t *testing.T) {
	v := NewSignatureVerifier("tok")
	ts, nonce := "100", "n"
	upper := ""
	for _, r := range v.Sign(ts, nonce) {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	if v.Verify(upper, ts, nonce) {
		t.Error("uppercase digest must not verify")
	}
}
