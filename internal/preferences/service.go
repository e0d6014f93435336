package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/gymtrack/backend/internal/streak"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidPreference indicates a value outside the allowed set.
var ErrInvalidPreference = errors.New("preferences: invalid value")

// Theme selects the display appearance.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// WeightUnit selects how weights are displayed. Storage is always
// kilograms.
type WeightUnit string

const (
	UnitKilograms WeightUnit = "kg"
	UnitPounds    WeightUnit = "lb"
)

// Preferences is the full typed settings snapshot. ReminderMinuteOfDay
// is nil until a reminder time has been chosen.
type Preferences struct {
	Theme               Theme
	WeightUnit          WeightUnit
	StreakMode          streak.Mode
	CreatineReminderOn  bool
	ReminderMinuteOfDay *int
}

func defaultPreferences() Preferences {
	return Preferences{
		Theme:      ThemeSystem,
		WeightUnit: UnitKilograms,
		StreakMode: streak.ModeDays,
	}
}

const settingsKey = 0

type settingsRow struct {
	Key                 int    `gorm:"column:key;primaryKey;autoIncrement:false"`
	Theme               string `gorm:"column:theme;size:32;not null"`
	WeightUnit          string `gorm:"column:weight_unit;size:8;not null"`
	StreakMode          string `gorm:"column:streak_mode;size:16;not null"`
	CreatineReminderOn  bool   `gorm:"column:creatine_reminder_on;not null;default:false"`
	ReminderMinuteOfDay *int   `gorm:"column:reminder_minute_of_day"`
}

// TableName provides the explicit table binding for GORM.
func (settingsRow) TableName() string {
	return "user_preferences"
}

// Entities lists the persisted models for schema migration.
func Entities() []interface{} {
	return []interface{}{&settingsRow{}}
}

// ServiceConfig describes the dependencies of the preference service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service persists user settings in a single fixed-key row.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the preference service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("preferences: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Preferences returns the stored settings, or defaults when nothing
// has been saved yet.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Where("key = ?", settingsKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultPreferences(), nil
	}
	if err != nil {
		s.logger.Error("preference load failed", zap.Error(err))
		return Preferences{}, err
	}
	return Preferences{
		Theme:               Theme(row.Theme),
		WeightUnit:          WeightUnit(row.WeightUnit),
		StreakMode:          streak.Mode(row.StreakMode),
		CreatineReminderOn:  row.CreatineReminderOn,
		ReminderMinuteOfDay: row.ReminderMinuteOfDay,
	}, nil
}

// UpdateTheme changes the display theme.
func (s *Service) UpdateTheme(ctx context.Context, theme Theme) error {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidPreference, theme)
	}
	return s.mutate(ctx, func(current *Preferences) {
		current.Theme = theme
	})
}

// UpdateWeightUnit changes the display unit.
func (s *Service) UpdateWeightUnit(ctx context.Context, unit WeightUnit) error {
	switch unit {
	case UnitKilograms, UnitPounds:
	default:
		return fmt.Errorf("%w: weight unit %q", ErrInvalidPreference, unit)
	}
	return s.mutate(ctx, func(current *Preferences) {
		current.WeightUnit = unit
	})
}

// UpdateStreakMode changes how the workout streak is counted.
func (s *Service) UpdateStreakMode(ctx context.Context, mode streak.Mode) error {
	switch mode {
	case streak.ModeDays, streak.ModeWeeks:
	default:
		return fmt.Errorf("%w: streak mode %q", ErrInvalidPreference, mode)
	}
	return s.mutate(ctx, func(current *Preferences) {
		current.StreakMode = mode
	})
}

// UpdateCreatineReminder toggles the creatine reminder. The stored
// reminder time is kept when minuteOfDay is nil.
func (s *Service) UpdateCreatineReminder(ctx context.Context, enabled bool, minuteOfDay *int) error {
	if minuteOfDay != nil && (*minuteOfDay < 0 || *minuteOfDay >= 24*60) {
		return fmt.Errorf("%w: reminder minute %d", ErrInvalidPreference, *minuteOfDay)
	}
	return s.mutate(ctx, func(current *Preferences) {
		current.CreatineReminderOn = enabled
		if minuteOfDay != nil {
			value := *minuteOfDay
			current.ReminderMinuteOfDay = &value
		}
	})
}

func (s *Service) mutate(ctx context.Context, apply func(*Preferences)) error {
	current, err := s.Preferences(ctx)
	if err != nil {
		return err
	}
	apply(&current)

	row := settingsRow{
		Key:                 settingsKey,
		Theme:               string(current.Theme),
		WeightUnit:          string(current.WeightUnit),
		StreakMode:          string(current.StreakMode),
		CreatineReminderOn:  current.CreatineReminderOn,
		ReminderMinuteOfDay: current.ReminderMinuteOfDay,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"theme", "weight_unit", "streak_mode", "creatine_reminder_on", "reminder_minute_of_day",
		}),
	}).Create(&row).Error
	if err != nil {
		s.logger.Error("preference save failed", zap.Error(err))
		return err
	}
	return nil
}
