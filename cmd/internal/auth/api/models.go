package authapi

import "time"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

type loginResponse struct {
	AccessToken         string       `json:"access_token"`
	ExpiresIn           int64        `json:"expires_in"`
	ForcePasswordChange bool         `json:"force_password_change"`
	User                userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// resetRequestedMessage is returned for every password reset request.
const resetRequestedMessage = "If an account exists with this email, a reset link has been sent."
