package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocalKey = "authUserId"

// AuthMiddleware validates the caller's session token and stores the user id
// for downstream handlers. Tokens arrive as "Authorization: Bearer <token>";
// the streaming endpoint also accepts ?token= because EventSource cannot set
// request headers.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}

		userID, err := tokenSubject(token, secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userIDLocalKey, userID)
		return c.Next()
	}
}

// AuthUserID returns the authenticated user id set by AuthMiddleware.
func AuthUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(userIDLocalKey).(string); ok {
		return userID
	}
	return ""
}

func bearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func tokenSubject(token string, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	return subject, nil
}
