package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/fastygo/taskbot/domain"
)

const webAppDataKey = "WebAppData"

// Validator checks Mini App initData signatures. The bot token is captured
// once at construction and never refreshed.
type Validator struct {
	secret []byte
}

func NewValidator(botToken string) *Validator {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return &Validator{secret: mac.Sum(nil)}
}

// Validate verifies initData and returns the id of the signed-in user.
// Every failure is reported as domain.ErrUnauthorized.
func (v *Validator) Validate(initData string) (int64, error) {
	params := make(map[string]string)
	for _, part := range strings.Split(initData, "&") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		params[key] = value
	}

	provided, ok := params["hash"]
	if !ok {
		return 0, domain.ErrUnauthorized
	}
	delete(params, "hash")

	expected := v.sign(canonical(params))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return 0, domain.ErrUnauthorized
	}

	raw, err := url.QueryUnescape(params["user"])
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		return 0, domain.ErrUnauthorized
	}
	return user.ID, nil
}

func (v *Validator) sign(data string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonical renders params as sorted key=value lines.
func canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+params[k])
	}
	return strings.Join(lines, "\n")
}
