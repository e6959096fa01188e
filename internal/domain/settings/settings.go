package settings

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

type Settings struct {
	DefaultKeywords     string `toml:"default_keywords" json:"default_keywords"`
	DefaultLookbackDays int    `toml:"default_lookback_days" json:"default_lookback_days"`
	ReminderDefaultTime string `toml:"reminder_default_time" json:"reminder_default_time"`
	ReminderDays        int    `toml:"reminder_days" json:"reminder_days"`
	Timezone            string `toml:"timezone" json:"timezone"`
	Theme               string `toml:"theme" json:"theme"`
}

func Defaults() Settings {
	return Settings{
		DefaultKeywords:     "interview,follow up,proposal,meeting",
		DefaultLookbackDays: 30,
		ReminderDefaultTime: "09:00",
		ReminderDays:        2,
		Timezone:            "America/New_York",
		Theme:               "light",
	}
}

// Location resolves Timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReminderClock parses ReminderDefaultTime as HH:MM.
func (s Settings) ReminderClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.ReminderDefaultTime))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid reminder time %q: %w", s.ReminderDefaultTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

func (s Settings) Validate() error {
	if s.DefaultLookbackDays < 1 {
		return fmt.Errorf("default_lookback_days must be positive")
	}
	if s.ReminderDays < 0 {
		return fmt.Errorf("reminder_days must not be negative")
	}
	if _, _, err := s.ReminderClock(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", s.Timezone, err)
	}
	return nil
}

type Repo interface {
	// Load returns defaults when nothing is stored; a non-nil error alongside
	// usable settings means the stored document was unreadable.
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}
