package services

// Identity is the authenticated caller, passed explicitly to every service call.
type Identity struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
