package models

import "time"

const (
	// RoleShopOwner may mutate the catalog of the store named by StoreID.
	RoleShopOwner = "shop_owner"
	// RoleCustomer is the default role for self-registered users.
	RoleCustomer = "customer"
)

// User represents a user of the store.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string    `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"`
	Role      string    `json:"role" gorm:"type:varchar(32);not null;default:customer"`
	StoreID   string    `json:"store_id" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
