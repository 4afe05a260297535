package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/forscht/filedeck/internal/metrics"
)

const tokenTTL = 24 * time.Hour

func secret(c *fiber.Ctx) (username, password string, key []byte) {
	username = c.Locals("username").(string)
	password = c.Locals("password").(string)
	return username, password, []byte(fmt.Sprintf("%s:%s", username, password))
}

func LoginHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, password, secretKey := secret(c)

		user := new(User)
		if err := c.BodyParser(user); err != nil {
			return fiber.NewError(StatusBadRequest, ErrBadRequest)
		}

		if user.Username != username || user.Password != password {
			metrics.RecordAuth(false)
			return fiber.NewError(StatusUnauthorized, ErrBadUsernamePassword)
		}

		now := time.Now()
		claims := jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		}
		t, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
		if err != nil {
			return err
		}

		metrics.RecordAuth(true)
		return c.JSON(Response{Message: "login successful", Data: t})
	}
}

func AuthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		guestAllowed := c.Locals("guestmode").(bool)
		username, password, secretKey := secret(c)
		if username == "" && password == "" {
			return c.Next()
		}
		// If guests are allowed, enable readonly ops
		if guestAllowed {
			switch c.Method() {
			case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
				return c.Next()
			}
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			return fiber.NewError(StatusUnauthorized, ErrUnauthorized)
		}

		token, err := jwt.Parse(strings.TrimSpace(tokenStr), func(t *jwt.Token) (interface{}, error) {
			return secretKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return fiber.NewError(StatusUnauthorized, ErrUnauthorized)
		}

		return c.Next()
	}
}

func AuthConfigHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, password, _ := secret(c)
		response := Response{
			Message: "config retrieved",
			Data: map[string]interface{}{
				"login":     username != "" || password != "",
				"anonymous": c.Locals("guestmode").(bool),
			},
		}
		return c.Status(StatusOk).JSON(response)
	}
}
