package models

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAgent    UserRole = "agent"
	RoleAdmin    UserRole = "admin"
)

// User covers both customers and support agents. ExternalID carries the
// auth-provider UUID; agents additionally have bcrypt credentials.
type User struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID   string    `gorm:"column:user_id;type:text;uniqueIndex" json:"user_id"`
	Username     string    `gorm:"column:username;type:text" json:"username"`
	Email        string    `gorm:"column:email;type:text;index" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:text" json:"-"`
	Role         UserRole  `gorm:"column:role;type:text;default:customer" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string { return "users" }
