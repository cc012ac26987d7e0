package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/observability"
)

// DefaultSchedule runs the aggregator nightly at 02:00
const DefaultSchedule = "0 2 * * *"

// File is the optional YAML configuration file:
//
//	schedule: "0 2 * * *"
//	palette:
//	  fallback: "#9CA3AF"
//	  colors:
//	    planner: "#3B82F6"
type File struct {
	Schedule string            `yaml:"schedule"`
	Palette  analytics.Palette `yaml:"palette"`
}

// LoadFile reads and validates a configuration file. Palette keys are
// lowercased so lookups stay case-insensitive.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if len(f.Palette.Colors) > 0 {
		colors := make(map[string]string, len(f.Palette.Colors))
		for label, color := range f.Palette.Colors {
			colors[strings.ToLower(strings.TrimSpace(label))] = color
		}
		f.Palette.Colors = colors
	}

	if f.Schedule != "" {
		if err := ValidateSchedule(f.Schedule); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// apply overlays the non-empty file settings onto c
func (f *File) apply(c *AnalyticsConfig) {
	if f.Schedule != "" {
		c.Schedule = f.Schedule
	}
	if len(f.Palette.Colors) > 0 {
		c.Palette.Colors = f.Palette.Colors
	}
	if f.Palette.Fallback != "" {
		c.Palette.Fallback = f.Palette.Fallback
	}
}

// PaletteOrDefault returns the file palette, using the built-in palette for
// any part the file leaves unset
func (f *File) PaletteOrDefault() analytics.Palette {
	c := AnalyticsConfig{Palette: analytics.DefaultPalette()}
	f.apply(&c)
	return c.Palette
}

// ValidateSchedule checks a standard five-field cron expression
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// WatchPalette calls onChange with the reloaded palette each time path is
// written, until ctx is canceled. The parent directory is watched so editors
// that replace the file are handled. A file that fails to parse is logged
// and the previous palette stays in effect.
func WatchPalette(ctx context.Context, path string, logger *observability.Logger, onChange func(analytics.Palette)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		defer observability.RecoverPanic(logger, "palette watcher")

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				f, err := LoadFile(abs)
				if err != nil {
					logger.WithError(err).Warn("Ignoring invalid palette file")
					continue
				}
				logger.WithField("path", abs).Info("Palette reloaded")
				onChange(f.PaletteOrDefault())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Palette watcher error")
			}
		}
	}()
	return nil
}
