package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// SignatureHeader carries the body signature of a webhook request.
const SignatureHeader = "X-Line-Signature"

// Sign returns the base64 HMAC-SHA256 of body keyed by the channel secret, as the platform
// computes it. Test clients and local tooling use it to sign requests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether signature matches body.
func ValidSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return webhook.ValidateSignature(secret, signature, body)
}
