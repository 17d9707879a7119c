// Package planner wires the entity caches to a session and holds the
// planning logic behind the recipe and week views.
package planner

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/entity"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/remote"
)

// Collection names.
const (
	RecipesCollection = "recipes"
	MealsCollection   = "meals"
)

// Store holds one slice per entity type.
type Store struct {
	Recipes *entity.Slice[model.RecipeAttributes]
	Meals   *entity.Slice[model.MealAttributes]

	bindings []binding
}

// binding follows one slice's remote collection for a user.
type binding interface {
	follow(ctx context.Context, uid string) (unsubscribe func(), err error)
	clear()
	name() string
}

type sliceBinding[A any] struct {
	slice *entity.Slice[A]
	typed *remote.Typed[A]
	log   *zap.Logger
}

func (b sliceBinding[A]) name() string { return b.slice.Name() }
func (b sliceBinding[A]) clear()       { b.slice.Clear() }

func (b sliceBinding[A]) follow(ctx context.Context, uid string) (func(), error) {
	path := remote.UserPath(uid, b.slice.Name())
	return b.typed.Subscribe(ctx, path, b.slice.Hydrate, func(d model.Document, err error) {
		b.log.Warn("skipping undecodable document", zap.String("path", path), zap.String("id", d.ID), zap.Error(err))
	})
}

func bind[A any](name string, c remote.Client, log *zap.Logger) (*entity.Slice[A], binding) {
	typed := remote.NewTyped[A](c)
	s := entity.NewSlice[A](name, typed, log)
	return s, sliceBinding[A]{slice: s, typed: typed, log: log}
}

// NewStore creates the recipe and meal slices over c.
func NewStore(c remote.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	recipes, rb := bind[model.RecipeAttributes](RecipesCollection, c, log)
	meals, mb := bind[model.MealAttributes](MealsCollection, c, log)
	return &Store{Recipes: recipes, Meals: meals, bindings: []binding{rb, mb}}
}
