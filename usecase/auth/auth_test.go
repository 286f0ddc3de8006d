package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository/memory"
)

const botToken = "123456:TEST-TOKEN"

func signInitData(t *testing.T, token, canonical string) string {
	t.Helper()
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

func validInitData(t *testing.T, userJSON string) string {
	t.Helper()
	user := url.QueryEscape(userJSON)
	canonical := "auth_date=1700000000\nquery_id=AAE\nuser=" + user
	hash := signInitData(t, botToken, canonical)
	return "query_id=AAE&user=" + user + "&auth_date=1700000000&hash=" + hash
}

func TestValidator_AcceptsSignedPayload(t *testing.T) {
	v := NewValidator(botToken)

	userID, err := v.Validate(validInitData(t, `{"id":4242,"first_name":"Ann"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4242), userID)
}

func TestValidator_Rejects(t *testing.T) {
	v := NewValidator(botToken)
	good := validInitData(t, `{"id":4242}`)

	tests := map[string]string{
		"missing hash":     "query_id=AAE&user=%7B%22id%22%3A1%7D&auth_date=1700000000",
		"tampered field":   good[:len("query_id=")] + "BBB" + good[len("query_id=AAE"):],
		"wrong bot token":  "query_id=AAE&hash=" + signInitData(t, "other", "query_id=AAE"),
		"empty":            "",
		"user without id":  validInitData(t, `{"first_name":"Ann"}`),
		"user not json":    validInitData(t, `not-json`),
		"hash of nonsense": "query_id=AAE&hash=deadbeef",
	}

	for name, initData := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(initData)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestValidator_DropsEntriesWithoutEquals(t *testing.T) {
	v := NewValidator(botToken)

	userID, err := v.Validate("garbage&" + validInitData(t, `{"id":7}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func newUseCase(allowFallback bool) *UseCase {
	return New(memory.NewLaunchTokenRepository(), Config{
		BotToken:            botToken,
		TokenSecret:         "launch-secret",
		AllowUserIDFallback: allowFallback,
	}, nil)
}

func TestLaunchToken_RedeemsOnce(t *testing.T) {
	uc := newUseCase(false)
	ctx := context.Background()

	token, err := uc.IssueLaunchToken(ctx, 99)
	require.NoError(t, err)

	userID, err := uc.RedeemLaunchToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(99), userID)

	_, err = uc.RedeemLaunchToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLaunchToken_RejectsForeignSignature(t *testing.T) {
	uc := newUseCase(false)
	ctx := context.Background()

	claims := jwt.RegisteredClaims{ID: "x", Subject: "99", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("someone-else"))
	require.NoError(t, err)

	_, err = uc.RedeemLaunchToken(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLaunchToken_RejectsExpired(t *testing.T) {
	uc := newUseCase(false)
	ctx := context.Background()

	claims := jwt.RegisteredClaims{ID: "old", Subject: "99", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("launch-secret"))
	require.NoError(t, err)

	_, err = uc.RedeemLaunchToken(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_Order(t *testing.T) {
	ctx := context.Background()

	uc := newUseCase(false)
	userID, err := uc.Authenticate(ctx, Credentials{InitData: validInitData(t, `{"id":5}`), UserID: "6"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), userID)

	token, err := uc.IssueLaunchToken(ctx, 8)
	require.NoError(t, err)
	userID, err = uc.Authenticate(ctx, Credentials{InitData: "bad", LaunchToken: token})
	require.NoError(t, err)
	assert.Equal(t, int64(8), userID)

	_, err = uc.Authenticate(ctx, Credentials{UserID: "6"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "fallback must be off unless enabled")
}

func TestAuthenticate_FallbackWhenEnabled(t *testing.T) {
	uc := newUseCase(true)
	ctx := context.Background()

	userID, err := uc.Authenticate(ctx, Credentials{UserID: "6"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), userID)

	_, err = uc.Authenticate(ctx, Credentials{UserID: "abc"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSession_ExchangeConsumesLaunchToken(t *testing.T) {
	uc := newUseCase(false)
	ctx := context.Background()

	launch, err := uc.IssueLaunchToken(ctx, 42)
	require.NoError(t, err)

	session, err := uc.ExchangeLaunchToken(ctx, launch)
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.UserID)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	userID, err := uc.Authenticate(ctx, Credentials{SessionToken: session.Token})
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	// Session tokens are reusable, launch tokens are not.
	userID, err = uc.Authenticate(ctx, Credentials{SessionToken: session.Token})
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	_, err = uc.ExchangeLaunchToken(ctx, launch)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSession_TokensAreNotInterchangeable(t *testing.T) {
	uc := newUseCase(false)
	ctx := context.Background()

	launch, err := uc.IssueLaunchToken(ctx, 7)
	require.NoError(t, err)
	_, err = uc.VerifySession(launch)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	session, err := uc.IssueSession(7)
	require.NoError(t, err)
	_, err = uc.RedeemLaunchToken(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
