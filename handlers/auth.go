// handlers/auth.go - Registration and login
package handlers

import (
	"log"
	"os"
	"strings"
	"time"

	"mindhunt/database"
	"mindhunt/middleware"
	"mindhunt/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func generateToken(user *models.User) (string, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "mindhunt-secret-change-in-production"
	}

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_staff": user.IsStaff,
		"exp":      time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Register creates a player account.
// POST /api/auth/register
func Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "Username and a password of at least 8 characters are required",
		})
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ?", req.Username).
		Count(&count).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	if count > 0 {
		return c.Status(409).JSON(fiber.Map{
			"success": false,
			"error":   "Username already taken",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to hash password"})
	}

	user := &models.User{
		Username: req.Username,
		Email:    strings.TrimSpace(req.Email),
		Password: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to create user"})
	}

	token, err := generateToken(user)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to generate token"})
	}

	log.Printf("✅ New user registered: %s", user.Username)
	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// Login authenticates a player and returns a JWT.
// POST /api/auth/login
func Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	db := database.GetDB()
	var user models.User
	if err := db.Where("username = ?", strings.TrimSpace(req.Username)).
		First(&user).Error; err != nil {
		return c.Status(401).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid username or password",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(401).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid username or password",
		})
	}

	now := time.Now()
	user.LastActivity = &now
	db.Model(&user).Update("last_activity", now)

	token, err := generateToken(&user)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// GetCurrentUser returns the authenticated user's profile.
// GET /api/users/me
func GetCurrentUser(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	var user models.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "User not found"})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}
