package app

import (
	"context"
	"fmt"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/config"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/rs/zerolog"
)

// SourceOpener returns the fetcher of a named data source.
type SourceOpener func(ctx context.Context, name string) (kpi.ScalarFetcher, error)

// BuildRegistry turns the configured KPIs into a registry. Query KPIs
// without a source read from the fact warehouse. A source that cannot be
// opened, or a declaration that does not validate, fails only the KPIs
// concerned.
func BuildRegistry(ctx context.Context, cfg *config.Config, store kpi.ObservationReader, open SourceOpener) (*kpi.Registry, error) {
	logger := zerolog.Ctx(ctx)
	registry, err := kpi.NewRegistry()
	if err != nil {
		return nil, err
	}

	for i, k := range cfg.KPIs {
		if domain.NormalizeKpiNumber(k.Number) == "" {
			logger.Error().Int("index", i).Str("field_name", k.Name).Msg("kpi without a number is skipped")
			continue
		}

		computation, err := computationFor(ctx, cfg, k, store, open)
		if err != nil {
			logger.Error().Err(err).Str("kpi_number", k.Number).Msg("invalid kpi configuration, kpi will fail")
			computation = failed(fmt.Errorf("kpi %s: %w", k.Number, err))
		}

		def := kpi.Definition{
			Scorecard:    k.Scorecard,
			Number:       k.Number,
			RangeType:    k.RangeType,
			FieldName:    k.Name,
			FieldDetails: k.Details,
			Computation:  computation,
		}
		if err := registry.Register(def); err != nil {
			logger.Error().Err(err).Str("kpi_number", k.Number).Msg("kpi is not registered")
		}
	}

	logger.Debug().Int("kpis", registry.Len()).Msg("kpi registry built")
	return registry, nil
}

func computationFor(
	ctx context.Context,
	cfg *config.Config,
	k config.KpiConfig,
	store kpi.ObservationReader,
	open SourceOpener,
) (kpi.Computation, error) {
	if err := k.Validate(cfg.Sources); err != nil {
		return nil, err
	}
	return buildComputation(ctx, cfg, k, store, open)
}

func buildComputation(
	ctx context.Context,
	cfg *config.Config,
	k config.KpiConfig,
	store kpi.ObservationReader,
	open SourceOpener,
) (kpi.Computation, error) {
	switch k.Kind {
	case config.KpiKindQuery, "":
		build, err := kpi.TemplateQuery(k.Query, k.Params...)
		if err != nil {
			return nil, err
		}
		fetcher, err := fetcherFor(ctx, k.Source, store, open)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("kpi_number", k.Number).Str("source", k.Source).
				Msg("source unavailable, kpi will fail")
			return failed(err), nil
		}
		return kpi.NewRawKpi(build, fetcher), nil

	case config.KpiKindAverage:
		base := k.Base.Scorecard
		if base == "" {
			base = cfg.Scorecard.Name
		}
		avg := kpi.NewDerivedAverageKpi(store, base, k.Base.Number, k.Window)
		if k.RangeType != "" {
			avg.RangeType = k.RangeType
		}
		return avg, nil

	case config.KpiKindRatio:
		return kpi.NewRatioKpi(store, ref(cfg, k.Numerator), ref(cfg, k.Denominator)), nil

	default:
		return nil, fmt.Errorf("unknown kind %q: %w", k.Kind, domain.ErrInvalidConfig)
	}
}

func fetcherFor(ctx context.Context, source string, store kpi.ObservationReader, open SourceOpener) (kpi.ScalarFetcher, error) {
	if source == "" {
		fetcher, ok := store.(kpi.ScalarFetcher)
		if !ok {
			return nil, fmt.Errorf("fact warehouse cannot run queries: %w", domain.ErrInvalidConfig)
		}
		return fetcher, nil
	}
	return open(ctx, source)
}

func ref(cfg *config.Config, r config.KpiRef) kpi.Ref {
	scorecard := r.Scorecard
	if scorecard == "" {
		scorecard = cfg.Scorecard.Name
	}
	return kpi.Ref{Scorecard: scorecard, Number: r.Number}
}

func failed(err error) kpi.Computation {
	return kpi.ComputationFunc(func(context.Context, domain.ReportingPeriod) (*float64, error) {
		return nil, err
	})
}
