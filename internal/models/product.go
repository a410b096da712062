package models

import "time"

// DefaultCurrency is applied when a product is saved without a currency.
const DefaultCurrency = "GBP"

// Currencies lists the ISO 4217 codes a product may be priced in.
var Currencies = []string{"GBP", "EUR", "USD"}

// Product represents a sauce listed in the store.
type Product struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string       `json:"name" gorm:"type:varchar(200);not null" validate:"required,max=200"`
	Slug        string       `json:"slug" gorm:"type:varchar(200);uniqueIndex;not null" validate:"required,max=200"`
	PriceCents  int64        `json:"price_cents" gorm:"not null" validate:"gte=0"`
	Currency    string       `json:"currency" gorm:"type:varchar(3);not null;default:GBP" validate:"required,oneof=GBP EUR USD"`
	Description string       `json:"description"`
	ImageURL    string       `json:"image_url" validate:"omitempty,url"`
	CategoryID  *string      `json:"category_id" gorm:"type:varchar(36);index"`
	Category    *Category    `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	BrandID     *string      `json:"brand_id" gorm:"type:varchar(36);index"`
	Brand       *Brand       `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	HeatLevel   *string      `json:"heat_level,omitempty" gorm:"type:varchar(50)"`
	ChilliTypes []ChilliType `json:"chilli_types,omitempty" gorm:"many2many:product_chilli_types;"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BrandName returns the name of the owning brand, or an empty string.
func (p Product) BrandName() string {
	if p.Brand == nil {
		return ""
	}
	return p.Brand.Name
}

// IsSupportedCurrency reports whether code is one of Currencies.
func IsSupportedCurrency(code string) bool {
	for _, c := range Currencies {
		if c == code {
			return true
		}
	}
	return false
}
