package domain

// User is a staff member who can receive notifications.
type User struct {
	ID         string   `json:"id"`
	HospitalID string   `json:"hospitalId"`
	Role       Role     `json:"role"`
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	OnDuty     bool     `json:"onDuty"`
	PushTokens []string `json:"pushTokens,omitempty"`
}
