package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"fleetwatch-backend/internal/database"
	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/pkg/utils"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"` // "operator" or "admin"
}

type CreateUserResponse struct {
	Success bool                 `json:"success"`
	User    *models.UserResponse `json:"user,omitempty"`
	Message string               `json:"message,omitempty"`
}

// CreateUser creates a dashboard account
// Requires admin authentication
func CreateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			utils.Error(w, http.StatusServiceUnavailable, "user management requires a database")
			return
		}

		var req CreateUserRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.Name = strings.TrimSpace(req.Name)

		if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			utils.Error(w, http.StatusBadRequest, "Email, password, name, and role are required")
			return
		}
		if req.Role != models.RoleOperator && req.Role != models.RoleAdmin {
			utils.Error(w, http.StatusBadRequest, "Role must be 'operator' or 'admin'")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("❌ Failed to hash password: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		user := models.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Password:  string(hashed),
			Name:      req.Name,
			Role:      req.Role,
			CreatedAt: time.Now().Unix(),
		}
		if err := database.CreateUser(r.Context(), db, &user); err != nil {
			if errors.Is(err, database.ErrUserExists) {
				utils.Error(w, http.StatusConflict, "User with this email already exists")
				return
			}
			log.Printf("❌ Database error: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		log.Printf("✅ User created: %s (%s)", user.Email, user.Role)
		resp := user.ToUserResponse()
		utils.JSON(w, http.StatusCreated, CreateUserResponse{
			Success: true,
			User:    &resp,
			Message: "User created successfully",
		})
	}
}
