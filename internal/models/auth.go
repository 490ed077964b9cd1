// Входные/выходные модели REST-эндпойнтов /auth/* и /admin/*.
// Используются и сервером, и клиентом портала.
package models

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthSignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse — общий конверт ответов /auth/*.
// status: "success" | "failed"; остальные поля заполняются по эндпойнту.
type AuthResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Role         Role   `json:"role,omitempty"`
}

type ChangeRoleRequest struct {
	Role Role `json:"role"`
}
