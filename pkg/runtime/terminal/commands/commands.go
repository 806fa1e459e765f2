package commands

import (
	"context"
	"errors"
	"time"

	"github.com/de-tools/scorecard/pkg/runtime/app"
	"github.com/de-tools/scorecard/pkg/services/config"
)

// ErrKpiFailed is returned by run when at least one KPI failed.
var ErrKpiFailed = errors.New("one or more kpis failed")

// AppFactory builds the application for a config file.
type AppFactory func(ctx context.Context, configPath string) (*app.App, error)

// NewAppFactory loads the config file and builds the application with the
// given clock.
func NewAppFactory(now func() time.Time) AppFactory {
	return func(ctx context.Context, configPath string) (*app.App, error) {
		cfg, err := config.LoadConfig(ctx, configPath)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, app.WithClock(now))
	}
}
