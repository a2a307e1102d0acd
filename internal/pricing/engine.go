package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pizzeria-platform/internal/models"
)

// Client-sent prices may disagree with the authoritative price by at most
// this much before the item is marked corrected.
var mismatchTolerance = decimal.NewFromFloat(0.01)

var two = decimal.NewFromInt(2)

// Result is the outcome of reconciling one request's items. Items always
// carry the engine-computed prices; client figures are never persisted.
type Result struct {
	Items []models.OrderItem
	// Corrected is true when any client-sent price disagreed beyond tolerance.
	Corrected bool
	// InvalidItems holds indices of items referencing menu items or added
	// ingredients the tenant's catalog does not contain. Such references
	// price to zero and the whole order should be rejected upstream.
	InvalidItems []int
}

// Subtotal returns the sum of all reconciled item subtotals.
func (r *Result) Subtotal() float64 {
	sum := decimal.Zero
	for _, item := range r.Items {
		sum = sum.Add(decimal.NewFromFloat(item.Subtotal))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// Reconcile recomputes every proposed line item from the catalog snapshot.
// Pure computation: no I/O, deterministic.
func Reconcile(snap *models.CatalogSnapshot, proposed []models.ProposedItem) *Result {
	result := &Result{Items: make([]models.OrderItem, 0, len(proposed))}

	for i, p := range proposed {
		var unit decimal.Decimal
		valid := true

		if p.Variants.IsSplit() {
			unit, valid = splitUnitPrice(snap, &p)
		} else {
			unit, valid = regularUnitPrice(snap, p.MenuItemID, p.Variants)
		}

		if !valid {
			result.InvalidItems = append(result.InvalidItems, i)
		}

		subtotal := unit.Mul(decimal.NewFromInt(int64(p.Quantity))).Round(2)

		corrected := exceedsTolerance(unit, p.UnitPrice) || exceedsTolerance(subtotal, p.Subtotal)
		if corrected {
			result.Corrected = true
		}

		unitF, _ := unit.Float64()
		subF, _ := subtotal.Float64()

		result.Items = append(result.Items, models.OrderItem{
			MenuItemID: p.MenuItemID,
			Name:       p.Name,
			Quantity:   p.Quantity,
			UnitPrice:  unitF,
			Subtotal:   subF,
			Note:       p.Note,
			Variants:   p.Variants,
			Corrected:  corrected,
		})
	}

	return result
}

// regularUnitPrice prices a single-product item: size-adjusted base price
// plus added ingredient cost. Returns false when the menu item or any added
// ingredient is unknown.
func regularUnitPrice(snap *models.CatalogSnapshot, menuItemID uuid.UUID, v *models.ItemVariants) (decimal.Decimal, bool) {
	item, ok := snap.MenuItems[menuItemID]
	if !ok {
		return decimal.Zero, false
	}

	base := decimal.NewFromFloat(item.EffectivePrice())

	var sizeID *uuid.UUID
	if v != nil {
		sizeID = v.SizeID
	}

	if sizeID != nil {
		assignment, haveAssignment := snap.SizeAssignments[models.ItemSizeKey{MenuItemID: menuItemID, SizeID: *sizeID}]
		switch {
		case haveAssignment && assignment.PriceOverride != nil:
			// An explicit per-size price wins outright; the multiplier is ignored.
			base = decimal.NewFromFloat(*assignment.PriceOverride)
		default:
			if size, haveSize := snap.Sizes[*sizeID]; haveSize {
				base = base.Mul(decimal.NewFromFloat(size.Multiplier))
			}
		}
	}

	var added []models.AddedIngredient
	if v != nil {
		added = v.Added
	}

	cost, known := ingredientCost(snap, sizeID, added)

	return base.Add(cost).Round(2), known
}

// ingredientCost sums added ingredient prices. A size-specific ingredient
// price strictly replaces the base price; removed ingredients never credit.
// Returns false when any added ingredient is absent from the snapshot.
func ingredientCost(snap *models.CatalogSnapshot, sizeID *uuid.UUID, added []models.AddedIngredient) (decimal.Decimal, bool) {
	cost := decimal.Zero
	known := true

	for _, add := range added {
		var price decimal.Decimal
		priced := false

		if sizeID != nil {
			if p, ok := snap.IngredientSizePrices[models.IngredientSizeKey{IngredientID: add.ID, SizeID: *sizeID}]; ok {
				price = decimal.NewFromFloat(p)
				priced = true
			}
		}
		if !priced {
			if ing, ok := snap.Ingredients[add.ID]; ok {
				price = decimal.NewFromFloat(ing.BasePrice)
			} else {
				known = false
			}
		}

		cost = cost.Add(price.Mul(decimal.NewFromInt(int64(add.Quantity))))
	}

	return cost, known
}

// splitUnitPrice prices an item composed of two half-products: each half is
// priced independently with the same selected size, then the average is
// rounded up to the nearest 0.50 currency unit, never down.
func splitUnitPrice(snap *models.CatalogSnapshot, p *models.ProposedItem) (decimal.Decimal, bool) {
	v := p.Variants
	firstAdded, secondAdded := partitionAdded(v)

	firstVariants := &models.ItemVariants{SizeID: v.SizeID, Added: firstAdded}
	secondVariants := &models.ItemVariants{SizeID: v.SizeID, Added: secondAdded}

	firstTotal, firstOK := regularUnitPrice(snap, p.MenuItemID, firstVariants)
	secondTotal, secondOK := regularUnitPrice(snap, *v.SecondItemID, secondVariants)

	rawAverage := firstTotal.Add(secondTotal).Div(two)
	unit := ceilToHalf(rawAverage)

	return unit, firstOK && secondOK
}

// partitionAdded attributes each added ingredient to one half of a split
// item. An explicit half tag is authoritative; otherwise the legacy client
// convention applies: second-half ingredients carry a ": <second item name>"
// name suffix.
func partitionAdded(v *models.ItemVariants) (first, second []models.AddedIngredient) {
	legacySuffix := ": " + v.SecondItemName

	for _, add := range v.Added {
		switch add.Half {
		case models.HalfFirst:
			first = append(first, add)
		case models.HalfSecond:
			second = append(second, add)
		default:
			if v.SecondItemName != "" && strings.HasSuffix(add.Name, legacySuffix) {
				second = append(second, add)
			} else {
				first = append(first, add)
			}
		}
	}

	return first, second
}

// ceilToHalf rounds up to the nearest 0.50 currency unit.
func ceilToHalf(d decimal.Decimal) decimal.Decimal {
	return d.Mul(two).Ceil().Div(two)
}

func exceedsTolerance(computed decimal.Decimal, client float64) bool {
	return computed.Sub(decimal.NewFromFloat(client)).Abs().GreaterThan(mismatchTolerance)
}
