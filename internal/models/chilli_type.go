package models

// ChilliType tags a product with the peppers it is made from.
type ChilliType struct {
	ID        string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string  `json:"name" gorm:"type:varchar(100);not null"`
	Slug      string  `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	HeatLevel *string `json:"heat_level,omitempty" gorm:"type:varchar(50)"`
}
