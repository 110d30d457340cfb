package wechat

import (
	"crypto/subtle"

	"github.com/silenceper/wechat/v2/util"
)

// SignatureVerifier 校验微信服务器回调的签名。
// 摘要算法（token/timestamp/nonce 字典序拼接取 SHA-1）由官方库实现。
type SignatureVerifier struct {
	token string
}

func NewSignatureVerifier(token string) *SignatureVerifier {
	return &SignatureVerifier{token: token}
}

func (v *SignatureVerifier) Verify(signature, timestamp, nonce string) bool {
	expected := v.Sign(timestamp, nonce)
	// 大小写敏感比较，恒定时间防侧信道
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (v *SignatureVerifier) Sign(timestamp, nonce string) string {
	return util.Signature(v.token, timestamp, nonce)
}
