package models

// Category groups products by sauce style. Products reference it, never own it.
type Category struct {
	ID   string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name string `json:"name" gorm:"type:varchar(100);not null"`
	Slug string `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
}
