package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

const (
	// DefaultLaunchTokenTTL is how long a /app link stays valid.
	DefaultLaunchTokenTTL = 5 * time.Minute
	// DefaultSessionTokenTTL is how long an exchanged Mini App session lasts.
	DefaultSessionTokenTTL = 12 * time.Hour

	launchAudience  = "launch"
	sessionAudience = "session"
)

type Config struct {
	BotToken string
	// TokenSecret signs launch tokens.
	TokenSecret    string
	LaunchTokenTTL time.Duration
	SessionTTL     time.Duration
	// AllowUserIDFallback accepts a bare user id. Config loading refuses it outside test mode.
	AllowUserIDFallback bool
}

// Credentials carries whatever the caller presented.
type Credentials struct {
	InitData     string
	SessionToken string
	LaunchToken  string
	UserID       string
}

// Session is a stateless bearer token obtained by redeeming a launch token.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UseCase struct {
	validator *Validator
	tokens    repository.LaunchTokenRepository
	secret    []byte
	ttl       time.Duration
	session   time.Duration
	fallback  bool
	logger    *zap.Logger
}

func New(tokens repository.LaunchTokenRepository, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LaunchTokenTTL <= 0 {
		cfg.LaunchTokenTTL = DefaultLaunchTokenTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTokenTTL
	}
	secret := cfg.TokenSecret
	if secret == "" {
		logger.Warn("no token secret configured, signing tokens with the bot token")
		secret = cfg.BotToken
	}
	return &UseCase{
		validator: NewValidator(cfg.BotToken),
		tokens:    tokens,
		secret:    []byte(secret),
		ttl:       cfg.LaunchTokenTTL,
		session:   cfg.SessionTTL,
		fallback:  cfg.AllowUserIDFallback,
		logger:    logger,
	}
}

// Authenticate resolves the user behind creds. Signed initData wins, then a
// session token, then a launch token, then the test-only user id fallback.
func (uc *UseCase) Authenticate(ctx context.Context, creds Credentials) (int64, error) {
	if creds.InitData != "" {
		if userID, err := uc.validator.Validate(creds.InitData); err == nil {
			return userID, nil
		}
		uc.logger.Debug("init data rejected")
	}

	if creds.SessionToken != "" {
		if userID, err := uc.VerifySession(creds.SessionToken); err == nil {
			return userID, nil
		}
		uc.logger.Debug("session token rejected")
	}

	if creds.LaunchToken != "" {
		userID, err := uc.RedeemLaunchToken(ctx, creds.LaunchToken)
		if err == nil {
			return userID, nil
		}
		if !errors.Is(err, domain.ErrUnauthorized) {
			return 0, err
		}
	}

	if uc.fallback && creds.UserID != "" {
		if userID, err := strconv.ParseInt(creds.UserID, 10, 64); err == nil && userID != 0 {
			uc.logger.Warn("using insecure user id fallback", zap.Int64("user_id", userID))
			return userID, nil
		}
	}

	return 0, domain.ErrUnauthorized
}

// ValidateInitData verifies a Mini App initData string.
func (uc *UseCase) ValidateInitData(initData string) (int64, error) {
	return uc.validator.Validate(initData)
}

// IssueLaunchToken mints a signed one-time token for userID.
func (uc *UseCase) IssueLaunchToken(ctx context.Context, userID int64) (string, error) {
	now := time.Now()
	record := &domain.LaunchToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.ttl),
	}

	claims := jwt.RegisteredClaims{
		ID:        record.ID,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(record.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		Audience:  jwt.ClaimStrings{launchAudience},
	}
	signed, err := uc.sign(claims)
	if err != nil {
		return "", err
	}

	if err := uc.tokens.Save(ctx, record); err != nil {
		return "", err
	}
	return signed, nil
}

// RedeemLaunchToken verifies token and consumes it. A token redeems once.
func (uc *UseCase) RedeemLaunchToken(ctx context.Context, token string) (int64, error) {
	claims, err := uc.parse(token, launchAudience)
	if err != nil || claims.ID == "" {
		uc.logger.Debug("launch token rejected", zap.Error(err))
		return 0, domain.ErrUnauthorized
	}

	record, err := uc.tokens.Take(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrLaunchTokenNotFound) {
			return 0, domain.ErrUnauthorized
		}
		return 0, err
	}
	if record.IsExpired(time.Now()) || strconv.FormatInt(record.UserID, 10) != claims.Subject {
		return 0, domain.ErrUnauthorized
	}
	return record.UserID, nil
}

// ExchangeLaunchToken redeems a launch token for a session token.
func (uc *UseCase) ExchangeLaunchToken(ctx context.Context, launchToken string) (*Session, error) {
	userID, err := uc.RedeemLaunchToken(ctx, launchToken)
	if err != nil {
		return nil, err
	}
	return uc.IssueSession(userID)
}

// IssueSession mints a session token for userID.
func (uc *UseCase) IssueSession(userID int64) (*Session, error) {
	now := time.Now()
	expiresAt := now.Add(uc.session)
	signed, err := uc.sign(jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Audience:  jwt.ClaimStrings{sessionAudience},
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: signed, UserID: userID, ExpiresAt: expiresAt}, nil
}

// VerifySession returns the user a session token was issued to.
func (uc *UseCase) VerifySession(token string) (int64, error) {
	claims, err := uc.parse(token, sessionAudience)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, domain.ErrUnauthorized
	}
	return userID, nil
}

func (uc *UseCase) sign(claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.secret)
}

func (uc *UseCase) parse(token, audience string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return uc.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}
	if !claims.VerifyAudience(audience, true) {
		return nil, domain.ErrUnauthorized
	}
	return &claims, nil
}
