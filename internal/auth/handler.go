package auth

import (
	"strings"

	"cafepos-backend/internal/config"
	"cafepos-backend/internal/database"
	"cafepos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterAdminRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type LoginRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

// ValidatePIN enforces the 4-digit PIN rule before anything is hashed,
// compared or stored.
func ValidatePIN(pin string) error {
	if len(pin) != 4 {
		return fiber.NewError(fiber.StatusBadRequest, "PIN must be exactly 4 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fiber.NewError(fiber.StatusBadRequest, "PIN must be exactly 4 digits")
		}
	}
	return nil
}

// RegisterAdminHandler bootstraps the first admin account. Refused once
// an admin exists; further users are created through the admin panel.
func RegisterAdminHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name is required")
		}
		if err := ValidatePIN(body.PIN); err != nil {
			return err
		}

		var count int64
		database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "An admin already exists")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.PIN), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash PIN")
		}

		user := models.User{
			Name:    body.Name,
			PINHash: string(hash),
			Role:    models.RoleAdmin,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create user")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":   user.ID,
			"name": user.Name,
			"role": user.Role,
		})
	}
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if err := ValidatePIN(body.PIN); err != nil {
			return err
		}

		var user models.User
		if err := database.DB.Where("name = ?", body.Name).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid name or PIN")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(body.PIN)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid name or PIN")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":        user.ID,
				"name":      user.Name,
				"role":      user.Role,
				"branch_id": user.BranchID,
			},
		})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userIDVal := c.Locals(CtxUserIDKey)
		roleVal := c.Locals(CtxUserRoleKey)
		branchIDVal := c.Locals(CtxBranchIDKey)

		var user models.User
		if userID, ok := userIDVal.(uint); ok {
			if err := database.DB.First(&user, userID).Error; err == nil {
				response := fiber.Map{
					"user_id":   user.ID,
					"name":      user.Name,
					"role":      user.Role,
					"branch_id": user.BranchID,
				}

				if user.BranchID != nil {
					var branch models.Branch
					if err := database.DB.First(&branch, *user.BranchID).Error; err == nil {
						response["branch"] = fiber.Map{
							"id":      branch.ID,
							"name":    branch.Name,
							"address": branch.Address,
							"phone":   branch.Phone,
						}
					}
				}

				return c.JSON(response)
			}
		}

		return c.JSON(fiber.Map{
			"user_id":   userIDVal,
			"role":      roleVal,
			"branch_id": branchIDVal,
		})
	}
}
