package services

import (
	"context"
	"sort"
	"strings"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

// mealOrder is the order meal types are shown in a day
var mealOrder = map[string]int{
	"breakfast":  0,
	"brunch":     1,
	"lunch":      2,
	"dinner":     3,
	"late night": 4,
}

// MenuService reads the dishes served at each hall
type MenuService struct {
	log   logger.Logger
	store remote.Store
}

// NewMenuService creates a new MenuService
func NewMenuService(log logger.Logger, store remote.Store) *MenuService {
	return &MenuService{log: log, store: store}
}

// ListMenu returns a hall's dishes, optionally for a single meal type,
// ordered by station and dish name
func (s *MenuService) ListMenu(ctx context.Context, hall, mealType string) ([]models.Dish, error) {
	q := remote.From(remote.RelMenus).Eq("dining_hall_name", hall)
	if mealType != "" {
		q = q.Eq("meal_type", mealType)
	}
	rows, err := s.store.Select(ctx, q.OrderBy("station", false).OrderBy("dish", false))
	if err != nil {
		return nil, err
	}
	dishes := make([]models.Dish, 0, len(rows))
	for _, row := range rows {
		dishes = append(dishes, remote.DishFromRecord(row))
	}
	return dishes, nil
}

// GetDish returns one menu row
func (s *MenuService) GetDish(ctx context.Context, id int64) (*models.Dish, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelMenus).Eq("id", id).LimitTo(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrDishNotFound
	}
	d := remote.DishFromRecord(rows[0])
	return &d, nil
}

// MealTypes returns the distinct meal types served at a hall in the order
// of the day. Unrecognized meal types follow, alphabetically.
func (s *MenuService) MealTypes(ctx context.Context, hall string) ([]string, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelMenus).Select("meal_type").Eq("dining_hall_name", hall))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var types []string
	for _, row := range rows {
		m := row.String("meal_type")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		types = append(types, m)
	}
	sort.Slice(types, func(i, j int) bool {
		oi, iok := mealOrder[strings.ToLower(types[i])]
		oj, jok := mealOrder[strings.ToLower(types[j])]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return types[i] < types[j]
	})
	return types, nil
}

// GroupByStation splits dishes into stations, keeping the input order
func GroupByStation(dishes []models.Dish) []StationMenu {
	var out []StationMenu
	index := make(map[string]int)
	for _, d := range dishes {
		i, ok := index[d.Station]
		if !ok {
			i = len(out)
			index[d.Station] = i
			out = append(out, StationMenu{Station: d.Station})
		}
		out[i].Dishes = append(out[i].Dishes, d)
	}
	return out
}

// StationMenu is the dishes of one station
type StationMenu struct {
	Station string        `json:"station"`
	Dishes  []models.Dish `json:"dishes"`
}
