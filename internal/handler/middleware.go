package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"booking-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// Claims - пользовательские клеймы access-токена.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет подпись и срок действия access-токена и кладёт
// user_id в контекст запроса. Отзыв токена не проверяется - это
// ответственность auth-сервиса.
func (h *BookingHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Для websocket-апгрейда браузер не может выставить заголовок -
			// допускаем токен в query.
			authHeader = "Bearer " + c.Query("token")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			h.logger.Warn("Invalid Authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeTokenInvalid,
				Message: "Authorization header missing or malformed",
			})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil {
			h.logger.Warn("Access token verification failed", zap.Error(err))
			code := models.ErrCodeTokenInvalid
			message := "Token is invalid or malformed"
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = models.ErrCodeTokenExpired
				message = "Token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: code, Message: message})
			return
		}
		if !token.Valid || claims.UserID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeTokenInvalid,
				Message: "Token is invalid",
			})
			return
		}

		c.Set(contextUserIDKey, claims.UserID)
		c.Next()
	}
}

// userIDFromContext достаёт user_id, положенный AuthMiddleware.
func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(contextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	return userID, ok
}

// GenerateTestJWT выписывает короткоживущий токен для интеграционных тестов.
func GenerateTestJWT(secret string, userID uuid.UUID) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
