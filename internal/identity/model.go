package identity

import "time"

// Roles a marketplace account can hold.
const (
	RoleCustomer = "customer"
	RoleStylist  = "stylist"
)

// User represents a registered marketplace account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}
