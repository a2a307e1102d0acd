package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-platform/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

type snapshotBuilder struct {
	snap *models.CatalogSnapshot
}

func newSnapshot() *snapshotBuilder {
	return &snapshotBuilder{snap: models.NewCatalogSnapshot()}
}

func (b *snapshotBuilder) item(name string, basePrice float64, discounted *float64) uuid.UUID {
	id := uuid.New()
	b.snap.MenuItems[id] = models.MenuItem{ID: id, Name: name, BasePrice: basePrice, DiscountedPrice: discounted}
	return id
}

func (b *snapshotBuilder) size(name string, multiplier float64) uuid.UUID {
	id := uuid.New()
	b.snap.Sizes[id] = models.SizeVariant{ID: id, Name: name, Multiplier: multiplier}
	return id
}

func (b *snapshotBuilder) assign(itemID, sizeID uuid.UUID, override *float64) {
	key := models.ItemSizeKey{MenuItemID: itemID, SizeID: sizeID}
	b.snap.SizeAssignments[key] = models.SizeAssignment{MenuItemID: itemID, SizeID: sizeID, PriceOverride: override}
}

func (b *snapshotBuilder) ingredient(name string, basePrice float64) uuid.UUID {
	id := uuid.New()
	b.snap.Ingredients[id] = models.Ingredient{ID: id, Name: name, BasePrice: basePrice}
	return id
}

func (b *snapshotBuilder) ingredientSizePrice(ingredientID, sizeID uuid.UUID, price float64) {
	b.snap.IngredientSizePrices[models.IngredientSizeKey{IngredientID: ingredientID, SizeID: sizeID}] = price
}

func TestReconcile_PlainItemUsesEffectivePrice(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 7.50, nil)
	diavola := b.item("Diavola", 9.00, floatPtr(8.00))

	result := Reconcile(b.snap, []models.ProposedItem{
		{MenuItemID: margherita, Name: "Margherita", Quantity: 1, UnitPrice: 7.50, Subtotal: 7.50},
		{MenuItemID: diavola, Name: "Diavola", Quantity: 2, UnitPrice: 8.00, Subtotal: 16.00},
	})

	require.Len(t, result.Items, 2)
	assert.Equal(t, 7.50, result.Items[0].UnitPrice)
	assert.Equal(t, 8.00, result.Items[1].UnitPrice)
	assert.Equal(t, 16.00, result.Items[1].Subtotal)
	assert.False(t, result.Corrected)
	assert.Empty(t, result.InvalidItems)
}

func TestReconcile_SizeMultiplier(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)
	large := b.size("large", 1.5)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 9.00, Subtotal: 9.00,
		Variants: &models.ItemVariants{SizeID: &large},
	}})

	assert.Equal(t, 9.00, result.Items[0].UnitPrice)
	assert.False(t, result.Corrected)
}

func TestReconcile_PriceOverrideIgnoresMultiplier(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)
	large := b.size("large", 1.5)
	b.assign(itemID, large, floatPtr(11.00))
	cheese := b.ingredient("Extra cheese", 1.20)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 12.20, Subtotal: 12.20,
		Variants: &models.ItemVariants{
			SizeID: &large,
			Added:  []models.AddedIngredient{{ID: cheese, Name: "Extra cheese", Quantity: 1}},
		},
	}})

	// Override + ingredient cost, multiplier ignored entirely.
	assert.Equal(t, 12.20, result.Items[0].UnitPrice)
	assert.False(t, result.Corrected)
}

func TestReconcile_SizeSpecificIngredientPriceReplacesBase(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)
	large := b.size("large", 1.0)
	cheese := b.ingredient("Extra cheese", 1.00)
	b.ingredientSizePrice(cheese, large, 1.80)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 7.80, Subtotal: 7.80,
		Variants: &models.ItemVariants{
			SizeID: &large,
			Added:  []models.AddedIngredient{{ID: cheese, Name: "Extra cheese", Quantity: 1}},
		},
	}})

	// 6.00 + 1.80 (replaces the 1.00 base price, never adds to it).
	assert.Equal(t, 7.80, result.Items[0].UnitPrice)
}

func TestReconcile_RemovedIngredientsNeverCredit(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 6.00, Subtotal: 6.00,
		Variants: &models.ItemVariants{Removed: []string{"Basil", "Olives"}},
	}})

	assert.Equal(t, 6.00, result.Items[0].UnitPrice)
}

func TestCeilToHalf(t *testing.T) {
	cases := []struct {
		raw  float64
		want float64
	}{
		{3.01, 3.5},
		{3.50, 3.5},
		{3.51, 4.0},
		{3.00, 3.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got, _ := ceilToHalf(decimal.NewFromFloat(c.raw)).Float64()
		assert.Equal(t, c.want, got, "raw average %v", c.raw)
	}
}

func TestReconcile_SplitItemAveragesAndRoundsUp(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 6.00, nil)
	diavola := b.item("Diavola", 7.01, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: margherita, Name: "Margherita / Diavola", Quantity: 2,
		UnitPrice: 7.00, Subtotal: 14.00,
		Variants: &models.ItemVariants{
			SecondItemID:   &diavola,
			SecondItemName: "Diavola",
		},
	}})

	// (6.00 + 7.01) / 2 = 6.505 -> 7.00
	assert.Equal(t, 7.00, result.Items[0].UnitPrice)
	assert.Equal(t, 14.00, result.Items[0].Subtotal)
	assert.False(t, result.Corrected)
}

func TestReconcile_SplitItemLegacySuffixAttribution(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 6.00, nil)
	diavola := b.item("Diavola", 6.00, nil)
	salami := b.ingredient("Spicy salami", 2.00)
	cheese := b.ingredient("Extra cheese", 1.00)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: margherita, Name: "Margherita / Diavola", Quantity: 1,
		UnitPrice: 7.5, Subtotal: 7.5,
		Variants: &models.ItemVariants{
			SecondItemID:   &diavola,
			SecondItemName: "Diavola",
			Added: []models.AddedIngredient{
				{ID: cheese, Name: "Extra cheese", Quantity: 1},
				{ID: salami, Name: "Spicy salami: Diavola", Quantity: 1},
			},
		},
	}})

	// First half 6.00+1.00=7.00, second half 6.00+2.00=8.00, average 7.50.
	assert.Equal(t, 7.50, result.Items[0].UnitPrice)
}

func TestReconcile_SplitItemExplicitHalfTagWinsOverSuffix(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 6.00, nil)
	diavola := b.item("Diavola", 6.00, nil)
	salami := b.ingredient("Spicy salami", 2.00)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: margherita, Name: "Margherita / Diavola", Quantity: 1,
		UnitPrice: 7.0, Subtotal: 7.0,
		Variants: &models.ItemVariants{
			SecondItemID:   &diavola,
			SecondItemName: "Diavola",
			// Suffix says second half, explicit tag says first.
			Added: []models.AddedIngredient{
				{ID: salami, Name: "Spicy salami: Diavola", Quantity: 1, Half: models.HalfFirst},
			},
		},
	}})

	// First half 8.00, second half 6.00, average 7.00.
	assert.Equal(t, 7.00, result.Items[0].UnitPrice)
}

func TestReconcile_MismatchCorrectedSilently(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Quattro Formaggi", 6.50, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Quattro Formaggi", Quantity: 1,
		UnitPrice: 5.00, Subtotal: 5.00,
	}})

	// The engine always returns its own value; client figures never survive.
	assert.Equal(t, 6.50, result.Items[0].UnitPrice)
	assert.Equal(t, 6.50, result.Items[0].Subtotal)
	assert.True(t, result.Items[0].Corrected)
	assert.True(t, result.Corrected)
	assert.Equal(t, 6.50, result.Subtotal())
}

func TestReconcile_WithinToleranceNotCorrected(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.50, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 6.49, Subtotal: 6.51,
	}})

	assert.False(t, result.Corrected)
}

func TestReconcile_UnknownMenuItemFlaggedInvalid(t *testing.T) {
	b := newSnapshot()

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: uuid.New(), Name: "Ghost pizza", Quantity: 1,
		UnitPrice: 9.00, Subtotal: 9.00,
	}})

	assert.Equal(t, []int{0}, result.InvalidItems)
	assert.Equal(t, 0.0, result.Items[0].UnitPrice)
}

func TestReconcile_UnknownIngredientFlaggedInvalid(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 6.00, Subtotal: 6.00,
		Variants: &models.ItemVariants{
			Added: []models.AddedIngredient{{ID: uuid.New(), Name: "Ghost topping", Quantity: 1}},
		},
	}})

	// The unknown ingredient contributes nothing, so the item must be
	// flagged rather than sold with a free topping.
	assert.Equal(t, []int{0}, result.InvalidItems)
	assert.Equal(t, 6.00, result.Items[0].UnitPrice)
}

func TestReconcile_SplitItemUnknownIngredientFlaggedInvalid(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 6.00, nil)
	diavola := b.item("Diavola", 6.00, nil)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: margherita, Name: "Margherita / Diavola", Quantity: 1,
		UnitPrice: 6.00, Subtotal: 6.00,
		Variants: &models.ItemVariants{
			SecondItemID:   &diavola,
			SecondItemName: "Diavola",
			Added:          []models.AddedIngredient{{ID: uuid.New(), Name: "Ghost topping", Quantity: 1, Half: models.HalfSecond}},
		},
	}})

	assert.Equal(t, []int{0}, result.InvalidItems)
}

func TestReconcile_SplitItemMidStringMarkerStaysOnFirstHalf(t *testing.T) {
	b := newSnapshot()
	margherita := b.item("Margherita", 6.00, nil)
	diavola := b.item("Diavola", 6.00, nil)
	salami := b.ingredient("Spicy salami", 2.00)

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: margherita, Name: "Margherita / Diavola", Quantity: 1,
		UnitPrice: 7.0, Subtotal: 7.0,
		Variants: &models.ItemVariants{
			SecondItemID:   &diavola,
			SecondItemName: "Diavola",
			// The marker appears mid-name, not as a suffix; only a trailing
			// ": Diavola" moves an ingredient to the second half.
			Added: []models.AddedIngredient{
				{ID: salami, Name: "Spicy salami: Diavola style", Quantity: 1},
			},
		},
	}})

	// First half 8.00, second half 6.00, average 7.00.
	assert.Equal(t, 7.00, result.Items[0].UnitPrice)
}

func TestReconcile_UnknownSizeFallsBackToEffectivePrice(t *testing.T) {
	b := newSnapshot()
	itemID := b.item("Margherita", 6.00, nil)
	missingSize := uuid.New()

	result := Reconcile(b.snap, []models.ProposedItem{{
		MenuItemID: itemID, Name: "Margherita", Quantity: 1,
		UnitPrice: 6.00, Subtotal: 6.00,
		Variants: &models.ItemVariants{SizeID: &missingSize},
	}})

	assert.Equal(t, 6.00, result.Items[0].UnitPrice)
	assert.Empty(t, result.InvalidItems)
}
