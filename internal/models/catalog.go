package models

import "github.com/google/uuid"

// MenuItem is one sellable product in a tenant's catalog.
type MenuItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	BasePrice       float64   `json:"base_price" db:"base_price"`
	DiscountedPrice *float64  `json:"discounted_price,omitempty" db:"discounted_price"`
}

// EffectivePrice returns the discounted price when present, else the base price.
func (m MenuItem) EffectivePrice() float64 {
	if m.DiscountedPrice != nil {
		return *m.DiscountedPrice
	}
	return m.BasePrice
}

// SizeVariant scales a menu item's price by a multiplier.
type SizeVariant struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Multiplier float64   `json:"multiplier" db:"multiplier"`
}

// SizeAssignment links a menu item to a size; a present price override
// replaces the multiplier-derived price outright.
type SizeAssignment struct {
	MenuItemID    uuid.UUID `json:"menu_item_id" db:"menu_item_id"`
	SizeID        uuid.UUID `json:"size_id" db:"size_id"`
	PriceOverride *float64  `json:"price_override,omitempty" db:"price_override"`
}

// Ingredient is an extra that can be added to a menu item.
type Ingredient struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	BasePrice float64   `json:"base_price" db:"base_price"`
}

// ItemSizeKey identifies a (menu item, size) pair.
type ItemSizeKey struct {
	MenuItemID uuid.UUID
	SizeID     uuid.UUID
}

// IngredientSizeKey identifies an (ingredient, size) pair.
type IngredientSizeKey struct {
	IngredientID uuid.UUID
	SizeID       uuid.UUID
}

// CatalogSnapshot is the read-only, tenant-scoped catalog subset needed to
// price one request. All lookups are by id within the requesting tenant only.
type CatalogSnapshot struct {
	MenuItems            map[uuid.UUID]MenuItem
	Sizes                map[uuid.UUID]SizeVariant
	SizeAssignments      map[ItemSizeKey]SizeAssignment
	Ingredients          map[uuid.UUID]Ingredient
	IngredientSizePrices map[IngredientSizeKey]float64
}

// NewCatalogSnapshot returns an empty snapshot with initialized maps.
func NewCatalogSnapshot() *CatalogSnapshot {
	return &CatalogSnapshot{
		MenuItems:            make(map[uuid.UUID]MenuItem),
		Sizes:                make(map[uuid.UUID]SizeVariant),
		SizeAssignments:      make(map[ItemSizeKey]SizeAssignment),
		Ingredients:          make(map[uuid.UUID]Ingredient),
		IngredientSizePrices: make(map[IngredientSizeKey]float64),
	}
}
