package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/scorecard/pkg/archive"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/config"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/period"
	"github.com/de-tools/scorecard/pkg/services/scorecard"
	"github.com/de-tools/scorecard/pkg/services/sheet"
	"github.com/de-tools/scorecard/pkg/sheet/gsheets"
	"github.com/de-tools/scorecard/pkg/sheet/xlsx"
	factstore "github.com/de-tools/scorecard/pkg/store/scorecard"
	"github.com/de-tools/scorecard/pkg/store/warehouse"
	"github.com/rs/zerolog"
)

// App wires configuration to the warehouse, the fact table and the sheet.
type App struct {
	cfg      *config.Config
	db       *sql.DB
	store    factstore.Store
	registry *kpi.Registry
	sources  map[string]*warehouse.Source
	now      func() time.Time

	// publishMu serializes publishes to the sheet.
	publishMu sync.Mutex
}

type Option func(*App)

func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithDB uses an already open fact warehouse connection.
func WithDB(db *sql.DB) Option {
	return func(a *App) {
		a.db = db
	}
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	a := &App{
		cfg:     cfg,
		sources: make(map[string]*warehouse.Source),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.db == nil {
		db, err := warehouse.Open(ctx, cfg.Warehouse, cfg.Scorecard.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to open fact warehouse: %w", err)
		}
		a.db = db
	}

	idColumn := cfg.Scorecard.IDColumn
	if idColumn == "" && cfg.Warehouse.Driver == warehouse.DialectDuckDB {
		idColumn = "id"
	}
	store, err := factstore.NewStore(a.db, factstore.Settings{
		Table:    cfg.Scorecard.Table,
		Dialect:  cfg.Warehouse.Driver,
		IDColumn: idColumn,
	})
	if err != nil {
		a.db.Close()
		return nil, err
	}
	a.store = store

	registry, err := BuildRegistry(ctx, cfg, store, a.openSource)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.registry = registry
	return a, nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Store() factstore.Store {
	return a.store
}

func (a *App) Registry() *kpi.Registry {
	return a.registry
}

func (a *App) Runner(opts ...scorecard.Option) (*scorecard.Runner, error) {
	base := []scorecard.Option{scorecard.WithClock(a.now), scorecard.WithDB(a.db)}
	return scorecard.NewRunner(a.store, append(base, opts...)...)
}

func (a *App) Period() domain.ReportingPeriod {
	return period.Resolve(a.now())
}

// Name is the configured scorecard name.
func (a *App) Name() string {
	return a.cfg.Scorecard.Name
}

// Observations returns every stored row of scorecard for the week ending lastSunday.
func (a *App) Observations(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error) {
	return a.store.FetchObservationsForPeriod(ctx, scorecard, lastSunday)
}

// Run computes every registered KPI, or only kpiNumber when it is set.
func (a *App) Run(ctx context.Context, kpiNumber string) (domain.RunSummary, error) {
	runner, err := a.Runner()
	if err != nil {
		return domain.RunSummary{}, err
	}
	if kpiNumber == "" {
		return runner.RunAll(ctx, a.registry), nil
	}

	def, ok := a.registry.Lookup(a.cfg.Scorecard.Name, kpiNumber)
	if !ok {
		return domain.RunSummary{}, fmt.Errorf("kpi %s is not registered in %s: %w", kpiNumber, a.cfg.Scorecard.Name, domain.ErrInvalidConfig)
	}
	return runner.RunOne(ctx, def), nil
}

// Publish writes the scorecard to the sheet. A nil lastSunday publishes the
// period stored for the current week. Publishes run one at a time.
func (a *App) Publish(ctx context.Context, lastSunday *time.Time) (result sheet.PublishResult, err error) {
	a.publishMu.Lock()
	defer a.publishMu.Unlock()

	if err := a.cfg.ValidatePublish(); err != nil {
		return sheet.PublishResult{}, err
	}

	target, closeSheet, err := a.openSheet(ctx)
	if err != nil {
		return sheet.PublishResult{}, err
	}
	defer func() {
		if closeErr := closeSheet(result.Period, err); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	synchronizer, err := sheet.NewSynchronizer(target, a.cfg.Sheet.Settings)
	if err != nil {
		return sheet.PublishResult{}, err
	}
	runner, err := a.Runner(scorecard.WithPublisher(synchronizer))
	if err != nil {
		return sheet.PublishResult{}, err
	}

	if lastSunday == nil {
		return runner.PublishCurrent(ctx, a.cfg.Scorecard.Name)
	}
	return runner.Publish(ctx, a.cfg.Scorecard.Name, *lastSunday)
}

// openSheet returns the configured sheet and a func that releases it once
// the given period has been published. A failed publish leaves the local
// workbook untouched.
func (a *App) openSheet(ctx context.Context) (sheet.Sheet, func(lastSunday string, publishErr error) error, error) {
	switch a.cfg.Sheet.Backend {
	case config.SheetBackendGoogle:
		w, err := gsheets.Open(ctx, a.cfg.Sheet.Google())
		if err != nil {
			return nil, nil, err
		}
		return w, func(string, error) error { return nil }, nil

	case config.SheetBackendXLSX:
		w, err := xlsx.Open(a.cfg.Sheet.Path, a.cfg.Sheet.Worksheet)
		if err != nil {
			return nil, nil, err
		}
		return w, func(lastSunday string, publishErr error) error {
			if publishErr != nil {
				return w.Discard()
			}
			if err := w.Close(ctx); err != nil {
				return err
			}
			if lastSunday == "" {
				return nil
			}
			return a.archive(ctx, lastSunday, w.Path())
		}, nil

	default:
		return nil, nil, fmt.Errorf("sheet backend %q: %w", a.cfg.Sheet.Backend, domain.ErrInvalidConfig)
	}
}

func (a *App) archive(ctx context.Context, lastSunday, path string) error {
	s3cfg := a.cfg.Archive.S3
	if !s3cfg.Enabled() {
		return nil
	}
	awsCfg, err := archive.LoadConfig(ctx, s3cfg.Profile, s3cfg.Region)
	if err != nil {
		return err
	}
	archiver, err := archive.NewFromConfig(*awsCfg, s3cfg.Bucket, s3cfg.Prefix)
	if err != nil {
		return err
	}
	_, err = archiver.Upload(ctx, lastSunday, path)
	return err
}

func (a *App) openSource(ctx context.Context, name string) (kpi.ScalarFetcher, error) {
	if src, ok := a.sources[name]; ok {
		return src, nil
	}
	settings, ok := a.cfg.Sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", name, domain.ErrInvalidConfig)
	}
	db, err := warehouse.Open(ctx, settings, "")
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", name, err)
	}
	src, err := warehouse.NewSource(db)
	if err != nil {
		return nil, err
	}
	a.sources[name] = src
	return src, nil
}

func (a *App) Close(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	var errs []error
	for name, src := range a.sources {
		if err := src.Close(); err != nil {
			logger.Warn().Err(err).Str("source", name).Msg("failed to close source")
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
