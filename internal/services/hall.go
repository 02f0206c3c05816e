package services

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

//go:embed halls.yaml
var defaultHalls []byte

// Closed marks a day without service in a halls file
const Closed = "closed"

// HallService manages dining halls and their operating hours
type HallService struct {
	log   logger.Logger
	store remote.Store
	now   func() time.Time
}

// NewHallService creates a new HallService
func NewHallService(log logger.Logger, store remote.Store) *HallService {
	return &HallService{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

// HallStatus is a dining hall together with whether it is open right now
type HallStatus struct {
	models.DiningHall
	Open bool `json:"open"`
}

type hallsFile struct {
	Halls []models.DiningHall `yaml:"halls"`
}

// ListHalls returns every dining hall ordered by name
func (s *HallService) ListHalls(ctx context.Context) ([]models.DiningHall, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelHalls).OrderBy("name", false))
	if err != nil {
		return nil, err
	}
	halls := make([]models.DiningHall, 0, len(rows))
	for _, row := range rows {
		h, err := remote.HallFromRecord(row)
		if err != nil {
			s.log.Warn("Ignoring malformed operating hours", "hall", h.Name, "error", err)
		}
		halls = append(halls, h)
	}
	return halls, nil
}

// HallNames returns the names of every dining hall
func (s *HallService) HallNames(ctx context.Context) ([]string, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelHalls).Select("name").OrderBy("name", false))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.String("name"))
	}
	return names, nil
}

// GetHall returns one dining hall with its open status
func (s *HallService) GetHall(ctx context.Context, name string) (*HallStatus, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelHalls).Eq("name", name).LimitTo(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrHallNotFound
	}
	h, err := remote.HallFromRecord(rows[0])
	if err != nil {
		s.log.Warn("Ignoring malformed operating hours", "hall", name, "error", err)
	}
	return &HallStatus{DiningHall: h, Open: IsOpen(h, s.now())}, nil
}

// HallExists reports whether a dining hall with this name exists
func (s *HallService) HallExists(ctx context.Context, name string) (bool, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelHalls).Select("name").Eq("name", name).LimitTo(1))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// SeedHalls upserts the halls listed in a YAML file. Empty data seeds the
// built-in campus halls. Returns the number of halls written.
func (s *HallService) SeedHalls(ctx context.Context, data []byte) (int, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		data = defaultHalls
	}
	halls, err := ParseHalls(data)
	if err != nil {
		return 0, err
	}
	for _, h := range halls {
		if err := s.store.Upsert(ctx, remote.RelHalls, remote.HallRecord(h), []string{"name"}); err != nil {
			return 0, err
		}
	}
	s.log.Info("Seeded dining halls", "count", len(halls))
	return len(halls), nil
}

// ParseHalls decodes and validates a halls file
func ParseHalls(data []byte) ([]models.DiningHall, error) {
	var f hallsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHallsFile, err)
	}
	seen := make(map[string]bool)
	for _, h := range f.Halls {
		if strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("%w: hall without a name", ErrInvalidHallsFile)
		}
		if seen[h.Name] {
			return nil, fmt.Errorf("%w: duplicate hall %q", ErrInvalidHallsFile, h.Name)
		}
		seen[h.Name] = true
		for day, hours := range h.OperatingHours {
			if _, ok := weekdays[day]; !ok {
				return nil, fmt.Errorf("%w: %s has unknown day %q", ErrInvalidHallsFile, h.Name, day)
			}
			if hours.Open == Closed && hours.Close == Closed {
				continue
			}
			if _, ok := parseClock(hours.Open); !ok {
				return nil, fmt.Errorf("%w: %s %s open time %q", ErrInvalidHallsFile, h.Name, day, hours.Open)
			}
			if _, ok := parseClock(hours.Close); !ok {
				return nil, fmt.Errorf("%w: %s %s close time %q", ErrInvalidHallsFile, h.Name, day, hours.Close)
			}
		}
	}
	return f.Halls, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsOpen reports whether the hall serves at the given local time. A close
// time at or before the open time means service runs past midnight.
func IsOpen(h models.DiningHall, at time.Time) bool {
	minute := at.Hour()*60 + at.Minute()

	if from, until, ok := hoursOn(h, at.Weekday()); ok {
		if until > from {
			return minute >= from && minute < until
		}
		if minute >= from {
			return true
		}
	}
	// the previous day's late shift
	if from, until, ok := hoursOn(h, (at.Weekday()+6)%7); ok && until <= from {
		return minute < until
	}
	return false
}

func hoursOn(h models.DiningHall, day time.Weekday) (from, until int, ok bool) {
	hours, found := h.OperatingHours[strings.ToLower(day.String())]
	if !found {
		return 0, 0, false
	}
	from, ok1 := parseClock(hours.Open)
	until, ok2 := parseClock(hours.Close)
	return from, until, ok1 && ok2
}

// parseClock reads "H:MM" or "HH:MM" as minutes after midnight
func parseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, false
	}
	if h == 24 && m != 0 {
		return 0, false
	}
	return h*60 + m, true
}
