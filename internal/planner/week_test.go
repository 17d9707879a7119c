package planner

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/and161185/meal-planner/internal/entity"
	"github.com/and161185/meal-planner/internal/model"
)

func recipe(id, title string, deleted bool) model.Recipe {
	return model.Recipe{Base: model.Base{ID: id}, Attributes: model.RecipeAttributes{Title: title, SoftDeleted: deleted}}
}

func meal(id string, date time.Time, recipeID string) model.Meal {
	return model.Meal{Base: model.Base{ID: id}, Attributes: model.MealAttributes{Date: date, RecipeID: recipeID}}
}

func TestWeekStartAndShift(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("X", 3*3600)
	start := WeekStart(time.Date(2024, 5, 8, 17, 45, 12, 99, loc))
	require.Equal(t, time.Date(2024, 5, 8, 0, 0, 0, 0, loc), start)

	require.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, loc), ShiftWeek(start, 1))
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), ShiftWeek(start, -1))
	require.Equal(t, start, ShiftWeek(start, 0))
}

func TestMealSlots(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	recipes := entity.Build([]model.Recipe{recipe("r1", "Soup", false), recipe("r2", "Stew", true)})
	meals := entity.Build([]model.Meal{
		meal("m1", start.Add(29*time.Hour), "r1"),        // day 1
		meal("m2", start.Add(-time.Hour), "r1"),          // previous week
		meal("m3", start.AddDate(0, 0, 7), "r1"),         // next week
		meal("m4", start.AddDate(0, 0, 6), "r2"),         // soft deleted recipe still shows
		meal("m5", start.Add(30*time.Hour), "r2"),        // same day as m1, later wins
		meal("m6", start.AddDate(0, 0, 3), "missing-id"), // unknown recipe
	})

	slots := MealSlots(meals, recipes, start)
	require.Len(t, slots, DaysPerWeek)
	for i, s := range slots {
		require.Equal(t, start.AddDate(0, 0, i), s.Date)
	}

	require.True(t, slots[0].Empty())
	require.Equal(t, "m5", slots[1].MealID)
	require.Equal(t, "Stew", slots[1].RecipeTitle)
	require.Equal(t, "m6", slots[3].MealID)
	require.Empty(t, slots[3].RecipeTitle)
	require.Equal(t, "m4", slots[6].MealID)
	require.Equal(t, "r2", slots[6].RecipeID)

	for _, i := range []int{0, 2, 4, 5} {
		require.True(t, slots[i].Empty(), "slot %d", i)
	}
}

func TestMealSlots_DSTWeek(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// clocks spring forward on Sun 2025-03-09, fall back on Sun 2025-11-02
	for _, start := range []time.Time{
		time.Date(2025, 3, 8, 0, 0, 0, 0, ny),
		time.Date(2025, 11, 1, 0, 0, 0, 0, ny),
	} {
		start := WeekStart(start)
		var planned []model.Meal
		for i := 0; i < DaysPerWeek; i++ {
			day := start.AddDate(0, 0, i)
			planned = append(planned,
				meal(fmt.Sprintf("midnight-%d", i), day, "r1"),
				meal(fmt.Sprintf("late-%d", i), day.Add(23*time.Hour+30*time.Minute).In(time.UTC), "r1"),
			)
		}
		// late-i sorts after midnight-i, so a late meal that stays on its day wins it
		slots := MealSlots(entity.Build(planned), entity.Empty[model.RecipeAttributes](), start)
		for i, s := range slots {
			y, m, d := start.AddDate(0, 0, i).Date()
			sy, sm, sd := s.Date.Date()
			require.Equal(t, []int{y, int(m), d}, []int{sy, int(sm), sd}, "slot %d", i)
			want := fmt.Sprintf("late-%d", i)
			if start.AddDate(0, 0, i).Add(23*time.Hour+30*time.Minute).Day() != d {
				// a 23h day: 23:30 after midnight is already tomorrow
				want = fmt.Sprintf("midnight-%d", i)
			}
			require.Equal(t, want, s.MealID, "%s slot %d", start.Format("2006-01-02"), i)
		}
	}
}

func TestVisibleRecipes(t *testing.T) {
	t.Parallel()

	st := entity.Build([]model.Recipe{
		recipe("1", "Tacos", false),
		recipe("2", "Apple pie", false),
		recipe("3", "Burger", true),
		recipe("4", "Lasagne", false),
	})
	got := VisibleRecipes(st)
	titles := make([]string, 0, len(got))
	for _, r := range got {
		titles = append(titles, r.Attributes.Title)
	}
	require.Equal(t, []string{"Apple pie", "Lasagne", "Tacos"}, titles)

	require.Empty(t, VisibleRecipes(entity.Empty[model.RecipeAttributes]()))
}
