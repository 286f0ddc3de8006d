package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/api/transport"
	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	authUC "github.com/fastygo/taskbot/usecase/auth"
)

const (
	HeaderInitData    = "X-Telegram-Init-Data"
	HeaderLaunchToken = "X-Launch-Token"

	authTimeout = 3 * time.Second
)

// Authenticator resolves the user behind a set of request credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, creds authUC.Credentials) (int64, error)
}

// TelegramAuth admits requests carrying signed Mini App initData, a session
// bearer token, a launch token, or (test mode only) a userId query parameter.
func TelegramAuth(auth Authenticator, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			creds := authUC.Credentials{
				InitData:     string(ctx.Request.Header.Peek(HeaderInitData)),
				SessionToken: extractToken(ctx),
				LaunchToken:  string(ctx.Request.Header.Peek(HeaderLaunchToken)),
				UserID:       string(ctx.QueryArgs().Peek("userId")),
			}

			stdCtx, cancel := context.WithTimeout(context.Background(), authTimeout)
			defer cancel()

			userID, err := auth.Authenticate(stdCtx, creds)
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					logger.Warn("authentication failed", zap.Error(err))
				}
				reject(ctx)
				return
			}

			httpcontext.SetUserID(ctx, userID)
			next(ctx)
		}
	}
}

func reject(ctx *fasthttp.RequestCtx) {
	body := transport.NewError(string(domain.ErrCodeUnauthorized), "unauthorized", nil).String()
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
