package models

// Brand is the producer of a sauce.
type Brand struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string `json:"name" gorm:"type:varchar(100);not null"`
	Slug        string `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string `json:"description,omitempty"`
	Country     string `json:"country,omitempty" gorm:"type:varchar(100)"`
	LogoURL     string `json:"logo_url,omitempty"`
}
