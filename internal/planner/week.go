package planner

import (
	"sort"
	"time"

	"github.com/and161185/meal-planner/internal/entity"
	"github.com/and161185/meal-planner/internal/model"
)

// DaysPerWeek is the number of slots in a planned week.
const DaysPerWeek = 7

// Slot is one day of the week view. MealID is empty for a free day.
type Slot struct {
	Date        time.Time
	MealID      string
	RecipeID    string
	RecipeTitle string
}

// Empty reports whether no meal is planned for the slot.
func (s Slot) Empty() bool { return s.MealID == "" }

// WeekStart returns midnight of t in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ShiftWeek moves start by n weeks.
func ShiftWeek(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, DaysPerWeek*n)
}

// dayIndex counts calendar days from start to t in start's location, so a
// 23 or 25 hour day around a DST change still counts as one.
func dayIndex(start, t time.Time) int {
	return int(civilDay(t.In(start.Location())).Sub(civilDay(start)) / (24 * time.Hour))
}

// civilDay is t's wall-clock date as UTC midnight.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MealSlots lays the meals of the week beginning at start onto seven days.
// When two meals fall on the same day the later one in the cache wins.
// A meal whose recipe is not cached keeps an empty title.
func MealSlots(meals entity.State[model.MealAttributes], recipes entity.State[model.RecipeAttributes], start time.Time) []Slot {
	slots := make([]Slot, DaysPerWeek)
	for i := range slots {
		slots[i].Date = start.AddDate(0, 0, i)
	}
	for _, id := range meals.AllIDs {
		m := meals.ByID[id]
		day := dayIndex(start, m.Attributes.Date)
		if day < 0 || day >= DaysPerWeek {
			continue
		}
		slots[day].MealID = m.ID
		slots[day].RecipeID = m.Attributes.RecipeID
		slots[day].RecipeTitle = recipes.ByID[m.Attributes.RecipeID].Attributes.Title
	}
	return slots
}

// VisibleRecipes returns the recipes that are not soft deleted, by title.
func VisibleRecipes(recipes entity.State[model.RecipeAttributes]) []model.Recipe {
	out := make([]model.Recipe, 0, len(recipes.AllIDs))
	for _, id := range recipes.AllIDs {
		if r := recipes.ByID[id]; !r.Attributes.SoftDeleted {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attributes.Title < out[j].Attributes.Title })
	return out
}
