package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobcard-service/internal/auth"
	"jobcard-service/internal/model"
)

const principalContextKey = "principal"

const codeUnauthorized = "UNAUTHORIZED"

var (
	errMissingAuthorization = errors.New("authorization header missing")
	errMalformedBearer      = errors.New("invalid authorization header")
)

// Auth пропускает только запросы с валидным Bearer-токеном и кладёт в контекст
// сотрудника, от имени которого выполняются действия с заказ-нарядом.
func Auth(parser *auth.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := parser.Parse(token)
		if err != nil {
			abortUnauthorized(c, auth.ErrInvalidToken.Error())
			return
		}

		SetPrincipal(c, model.Principal{UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedBearer
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errMalformedBearer
	}
	return token, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message, "code": codeUnauthorized})
}

func SetPrincipal(c *gin.Context, principal model.Principal) {
	c.Set(principalContextKey, principal)
}

// MustPrincipal false, если маршрут зарегистрирован без Auth
func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	principal, ok := c.Value(principalContextKey).(model.Principal)
	return principal, ok
}
