package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

const subjectKey = "ledger_subject"

// identityAuth authenticates write requests with HS256 bearer tokens. The
// token's sub claim becomes the caller identity that candidate and vote
// records are keyed by.
type identityAuth struct {
	secret []byte
	logger *slog.Logger
}

func (a identityAuth) requireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(a.secret) == 0 {
			a.reject(c, "auth_not_configured", "server has no signing secret configured")
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			a.reject(c, "missing_bearer_token", "Authorization header with bearer token is required")
			return
		}

		token, err := jwt.Parse(strings.TrimSpace(strings.TrimPrefix(header, prefix)), func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.reject(c, "invalid_token", "bearer token is invalid or expired")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			a.reject(c, "invalid_claims", "token claims are malformed")
			return
		}
		subject, _ := claims["sub"].(string)
		subject = strings.TrimSpace(subject)
		if subject == "" {
			a.reject(c, "missing_subject", "token must carry a sub claim")
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func (a identityAuth) reject(c *gin.Context, code string, message string) {
	if a.logger != nil {
		a.logger.Warn("request authentication failed",
			"event", "http_auth_rejected",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"code", code,
			"path", c.Request.URL.Path,
		)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, httptransport.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func subjectFrom(c *gin.Context) string {
	value, _ := c.Get(subjectKey)
	subject, _ := value.(string)
	return subject
}
