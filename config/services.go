package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeExporter runs the export job workers.
	ServiceModeExporter ServiceMode = "exporter"
	// ServiceModeReminder runs the feeding reminder scheduler.
	ServiceModeReminder ServiceMode = "reminder"
	// ServiceModeReaper runs the retention reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeExporter,
		ServiceModeReminder,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeExporter, ServiceModeReminder, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, exporter, reminder, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ExporterConfig contains export worker configuration.
type ExporterConfig struct {
	// Workers is the number of concurrent export worker goroutines.
	Workers int `env:"EXPORTER_WORKERS" envDefault:"2"`

	// PollInterval is how long a worker sleeps after finding no queued jobs.
	PollInterval time.Duration `env:"EXPORTER_POLL_INTERVAL" envDefault:"2s"`

	// ExecutionBudget is the maximum time a claimed job may run before the
	// watchdog fails it.
	ExecutionBudget time.Duration `env:"EXPORTER_EXECUTION_BUDGET" envDefault:"5m"`
}

// Sanitize applies guardrails to exporter configuration values.
func (e *ExporterConfig) Sanitize() {
	if e.Workers < 1 {
		e.Workers = 1
	}
	if e.PollInterval < 100*time.Millisecond {
		e.PollInterval = 100 * time.Millisecond
	}
	if e.ExecutionBudget < 30*time.Second {
		e.ExecutionBudget = 30 * time.Second
	}
}

// ReminderConfig contains feeding reminder scheduler configuration.
type ReminderConfig struct {
	// Interval is the scheduler tick interval.
	Interval time.Duration `env:"REMINDER_INTERVAL" envDefault:"5m"`
}

// Sanitize applies guardrails to reminder configuration values.
func (r *ReminderConfig) Sanitize() {
	if r.Interval < 30*time.Second {
		r.Interval = 30 * time.Second
	}
}

// ReaperConfig contains retention reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"10m"`

	// JobMaxAge is the maximum age of an export job before it is expired
	// and its stored result reclaimed.
	JobMaxAge time.Duration `env:"REAPER_JOB_MAX_AGE" envDefault:"168h"` // 7 days

	// NotificationMaxAge is the maximum age of a notification before deletion.
	NotificationMaxAge time.Duration `env:"REAPER_NOTIFICATION_MAX_AGE" envDefault:"720h"` // 30 days

	// ReminderMarkMaxAge is the maximum age of reminder watermarks before deletion.
	ReminderMarkMaxAge time.Duration `env:"REAPER_REMINDER_MARK_MAX_AGE" envDefault:"72h"`

	// BatchSize is the maximum number of rows affected per cleanup statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.JobMaxAge < time.Hour {
		r.JobMaxAge = time.Hour
	}
	if r.NotificationMaxAge < time.Hour {
		r.NotificationMaxAge = time.Hour
	}
	if r.ReminderMarkMaxAge < time.Hour {
		r.ReminderMarkMaxAge = time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
}
