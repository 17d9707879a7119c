package planner

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/meal-planner/internal/model"
)

// ErrEmptySlot is returned when toggling a day with no meal; the caller
// should offer a recipe instead.
var ErrEmptySlot = errors.New("no meal planned for this day")

// Planner implements the user actions of the recipe and week views.
type Planner struct {
	store *Store
}

// New returns a planner over store.
func New(store *Store) *Planner { return &Planner{store: store} }

// Store returns the underlying caches.
func (p *Planner) Store() *Store { return p.store }

// Week returns the slots of the week beginning at start.
func (p *Planner) Week(start time.Time) []Slot {
	return MealSlots(p.store.Meals.State(), p.store.Recipes.State(), start)
}

// Recipes returns the selectable recipes.
func (p *Planner) Recipes() []model.Recipe {
	return VisibleRecipes(p.store.Recipes.State())
}

// SelectRecipe plans recipe on date.
func (p *Planner) SelectRecipe(ctx context.Context, date time.Time, recipe model.Recipe) (model.Meal, error) {
	return p.store.Meals.Add(ctx, model.MealAttributes{Date: date, RecipeID: recipe.ID})
}

// ToggleSlot removes the slot's meal.
func (p *Planner) ToggleSlot(ctx context.Context, slot Slot) error {
	if slot.Empty() {
		return ErrEmptySlot
	}
	meal, ok := p.store.Meals.Get(slot.MealID)
	if !ok {
		meal = model.Meal{Base: model.Base{ID: slot.MealID}}
	}
	_, err := p.store.Meals.Delete(ctx, meal)
	return err
}

// SaveRecipe updates editing with the form fields of attrs, or adds a new
// recipe when editing is nil. Fields the form does not carry are kept.
func (p *Planner) SaveRecipe(ctx context.Context, editing *model.Recipe, attrs model.RecipeAttributes) (model.Recipe, error) {
	if editing == nil {
		return p.store.Recipes.Add(ctx, attrs)
	}
	r := *editing
	r.Attributes.Title = attrs.Title
	return p.store.Recipes.Update(ctx, r)
}

// SoftDeleteRecipe hides editing from the recipe list. Meals keep pointing
// at it. editing must not be nil.
func (p *Planner) SoftDeleteRecipe(ctx context.Context, editing *model.Recipe) (model.Recipe, error) {
	if editing == nil {
		panic("cannot delete undefined recipe")
	}
	r := *editing
	r.Attributes.SoftDeleted = true
	return p.store.Recipes.Update(ctx, r)
}
