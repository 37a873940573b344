package middleware

import (
	"crypto/subtle"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ModeratorRequired admits either the configured admin token or a JWT user
// whose stored role is moderator or admin. Token callers act as the system.
func ModeratorRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ok, _ := c.Locals("admin_token").(bool); ok || validAdminToken(c, cfg) {
			return c.Next()
		}

		userID, err := GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		var user models.User
		if err := db.Select("id", "role").First(&user, "id = ?", userID).Error; err == nil {
			if models.IsModerator(user.Role) {
				c.Locals("moderator_id", user.ID)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Moderator access required",
		})
	}
}

// AdminTokenOrJWT lets admin-token callers through without a bearer token and
// hands everyone else to the JWT check.
func AdminTokenOrJWT(cfg *config.Config) fiber.Handler {
	jwtCheck := JWTProtected(cfg)
	return func(c *fiber.Ctx) error {
		if validAdminToken(c, cfg) {
			c.Locals("admin_token", true)
			return c.Next()
		}
		return jwtCheck(c)
	}
}

func validAdminToken(c *fiber.Ctx, cfg *config.Config) bool {
	return cfg.AdminToken != "" &&
		subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Token")), []byte(cfg.AdminToken)) == 1
}
