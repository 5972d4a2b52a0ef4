package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"crosspost-connect/internal/domain/entity"
)

const (
	HeaderAPIKey = "X-API-Key"
	HeaderUserID = "X-User-ID"

	userIDLocal = "user_id"
)

// APIKey rejects requests that do not carry the shared service key
func APIKey(apiKey string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup: "header:" + HeaderAPIKey,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(
				entity.NewErrorResponse("UNAUTHORIZED", "Missing or invalid API key"),
			)
		},
	})
}

// RequireUser reads the user the authenticated caller acts for. It must run
// after APIKey.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(
				entity.NewErrorResponse("BAD_REQUEST", HeaderUserID+" header is required"),
			)
		}
		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the user set by RequireUser
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)
	return userID
}
