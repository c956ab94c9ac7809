package http

// DTOs del API v1. Los responses de auth reusan los structs del boundary
// (auth.Result, auth.Refreshed) que ya llevan tags json.

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type checkRequest struct {
	Permission string `json:"permission"`
}

type checkResponse struct {
	Authorized bool   `json:"authorized"`
	UserID     string `json:"user_id"`
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type rolePermsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
