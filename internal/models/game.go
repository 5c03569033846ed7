package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type GameStatus string

const (
	GameStatusActive      GameStatus = "active"
	GameStatusMaintenance GameStatus = "maintenance"
	GameStatusInactive    GameStatus = "inactive"
)

type Game struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Slug         string     `gorm:"uniqueIndex;size:200;not null" json:"slug"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       GameStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	DisplayOrder int        `gorm:"default:0" json:"display_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Packages []GamePackage `gorm:"foreignKey:GameID" json:"packages,omitempty"`
}

type GamePackage struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	GameID      uint   `gorm:"index;not null" json:"game_id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	PackageType string `gorm:"type:varchar(20)" json:"package_type"`

	PriceUSD     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_usd"`
	InGameAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"in_game_amount"`
	InGameUnit   string          `gorm:"size:50" json:"in_game_unit"`

	IsActive     bool `gorm:"default:true;index" json:"is_active"`
	DisplayOrder int  `gorm:"default:0" json:"display_order"`

	// Display extras (icon, badge, promo labels) kept schemaless.
	Meta datatypes.JSON `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Game *Game `gorm:"foreignKey:GameID" json:"-"`
}
