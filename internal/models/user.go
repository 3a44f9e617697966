package models

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User is a dashboard account. Admins may change thresholds.
type User struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password"`
	Name      string `json:"name" db:"name"`
	Role      string `json:"role" db:"role"` // "admin" or "operator"
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
