package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"fleetwatch-backend/internal/database"
	"fleetwatch-backend/internal/middleware"
	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/pkg/utils"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                 `json:"ok"`
	Token string               `json:"token,omitempty"`
	User  *models.UserResponse `json:"user,omitempty"`
}

func Login(db *sqlx.DB, auth *middleware.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			utils.Error(w, http.StatusServiceUnavailable, "login requires a database")
			return
		}

		var req LoginRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		log.Printf("🔐 Login attempt for: %s", req.Email)

		user, err := database.GetUserByEmail(r.Context(), db, req.Email)
		if err != nil {
			if !errors.Is(err, database.ErrUserNotFound) {
				log.Printf("❌ Login lookup failed: %v", err)
			}
			utils.JSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", req.Email)
			utils.JSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		token, err := auth.IssueToken(user)
		if err != nil {
			log.Printf("❌ Failed to create token: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create token")
			return
		}

		resp := user.ToUserResponse()
		log.Printf("✅ Login successful: %s (%s)", user.Email, user.Role)
		utils.JSON(w, http.StatusOK, LoginResponse{OK: true, Token: token, User: &resp})
	}
}
