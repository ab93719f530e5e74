package dto

// RegisterRequest is the body of POST /api/user/register.
type RegisterRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Password2        string `json:"password2"`
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
	AffCode          string `json:"aff_code,omitempty"`
}

// APIResponse is the envelope every upstream endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
