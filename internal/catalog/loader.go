package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pizzeria-platform/internal/database"
	"pizzeria-platform/internal/models"
)

// Loader fetches the minimal authoritative catalog subset needed to price
// one request. Every query carries an explicit organization_id predicate;
// ids from another tenant simply resolve to "not found".
type Loader struct {
	db *database.DB
}

// NewLoader creates a catalog loader.
func NewLoader(db *database.DB) *Loader {
	return &Loader{db: db}
}

// Load builds a request-scoped snapshot for the catalog entities referenced
// by the proposed items. The five lookups are independent and issued
// concurrently.
func (l *Loader) Load(ctx context.Context, orgID uuid.UUID, items []models.ProposedItem) (*models.CatalogSnapshot, error) {
	menuItemIDs, sizeIDs, ingredientIDs := referencedIDs(items)
	snap := models.NewCatalogSnapshot()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return l.loadMenuItems(gctx, orgID, menuItemIDs, snap) })
	g.Go(func() error { return l.loadSizes(gctx, orgID, sizeIDs, snap) })
	g.Go(func() error { return l.loadSizeAssignments(gctx, orgID, menuItemIDs, sizeIDs, snap) })
	g.Go(func() error { return l.loadIngredients(gctx, orgID, ingredientIDs, snap) })
	g.Go(func() error { return l.loadIngredientSizePrices(gctx, orgID, ingredientIDs, sizeIDs, snap) })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load catalog snapshot: %w", err)
	}

	return snap, nil
}

// referencedIDs collects the distinct catalog ids one request touches,
// including the second half of split items.
func referencedIDs(items []models.ProposedItem) (menuItems, sizes, ingredients []string) {
	menuSeen := make(map[uuid.UUID]bool)
	sizeSeen := make(map[uuid.UUID]bool)
	ingredientSeen := make(map[uuid.UUID]bool)

	for _, item := range items {
		if !menuSeen[item.MenuItemID] {
			menuSeen[item.MenuItemID] = true
			menuItems = append(menuItems, item.MenuItemID.String())
		}
		v := item.Variants
		if v == nil {
			continue
		}
		if v.SecondItemID != nil && !menuSeen[*v.SecondItemID] {
			menuSeen[*v.SecondItemID] = true
			menuItems = append(menuItems, v.SecondItemID.String())
		}
		if v.SizeID != nil && !sizeSeen[*v.SizeID] {
			sizeSeen[*v.SizeID] = true
			sizes = append(sizes, v.SizeID.String())
		}
		for _, add := range v.Added {
			if !ingredientSeen[add.ID] {
				ingredientSeen[add.ID] = true
				ingredients = append(ingredients, add.ID.String())
			}
		}
	}

	return menuItems, sizes, ingredients
}

func (l *Loader) loadMenuItems(ctx context.Context, orgID uuid.UUID, ids []string, snap *models.CatalogSnapshot) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT id, name, base_price, discounted_price
		 FROM menu_items
		 WHERE organization_id = $1 AND id = ANY($2::uuid[])`,
		orgID, ids)
	if err != nil {
		return fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.BasePrice, &item.DiscountedPrice); err != nil {
			return fmt.Errorf("scan menu item: %w", err)
		}
		snap.MenuItems[item.ID] = item
	}
	return rows.Err()
}

func (l *Loader) loadSizes(ctx context.Context, orgID uuid.UUID, ids []string, snap *models.CatalogSnapshot) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT id, name, multiplier
		 FROM sizes_master
		 WHERE organization_id = $1 AND id = ANY($2::uuid[])`,
		orgID, ids)
	if err != nil {
		return fmt.Errorf("query sizes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var size models.SizeVariant
		if err := rows.Scan(&size.ID, &size.Name, &size.Multiplier); err != nil {
			return fmt.Errorf("scan size: %w", err)
		}
		snap.Sizes[size.ID] = size
	}
	return rows.Err()
}

func (l *Loader) loadSizeAssignments(ctx context.Context, orgID uuid.UUID, menuItemIDs, sizeIDs []string, snap *models.CatalogSnapshot) error {
	if len(menuItemIDs) == 0 || len(sizeIDs) == 0 {
		return nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT menu_item_id, size_id, price_override
		 FROM menu_item_sizes
		 WHERE organization_id = $1 AND menu_item_id = ANY($2::uuid[]) AND size_id = ANY($3::uuid[])`,
		orgID, menuItemIDs, sizeIDs)
	if err != nil {
		return fmt.Errorf("query size assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.SizeAssignment
		if err := rows.Scan(&a.MenuItemID, &a.SizeID, &a.PriceOverride); err != nil {
			return fmt.Errorf("scan size assignment: %w", err)
		}
		snap.SizeAssignments[models.ItemSizeKey{MenuItemID: a.MenuItemID, SizeID: a.SizeID}] = a
	}
	return rows.Err()
}

func (l *Loader) loadIngredients(ctx context.Context, orgID uuid.UUID, ids []string, snap *models.CatalogSnapshot) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT id, name, base_price
		 FROM ingredients
		 WHERE organization_id = $1 AND id = ANY($2::uuid[])`,
		orgID, ids)
	if err != nil {
		return fmt.Errorf("query ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.BasePrice); err != nil {
			return fmt.Errorf("scan ingredient: %w", err)
		}
		snap.Ingredients[ing.ID] = ing
	}
	return rows.Err()
}

func (l *Loader) loadIngredientSizePrices(ctx context.Context, orgID uuid.UUID, ingredientIDs, sizeIDs []string, snap *models.CatalogSnapshot) error {
	if len(ingredientIDs) == 0 || len(sizeIDs) == 0 {
		return nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT ingredient_id, size_id, price
		 FROM ingredient_size_prices
		 WHERE organization_id = $1 AND ingredient_id = ANY($2::uuid[]) AND size_id = ANY($3::uuid[])`,
		orgID, ingredientIDs, sizeIDs)
	if err != nil {
		return fmt.Errorf("query ingredient size prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ingredientID, sizeID uuid.UUID
		var price float64
		if err := rows.Scan(&ingredientID, &sizeID, &price); err != nil {
			return fmt.Errorf("scan ingredient size price: %w", err)
		}
		snap.IngredientSizePrices[models.IngredientSizeKey{IngredientID: ingredientID, SizeID: sizeID}] = price
	}
	return rows.Err()
}
