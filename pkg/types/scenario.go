package types

import (
	"context"
	"log/slog"

	"github.com/dersolve/dersolve/pkg/log"
)

// Horizon selects the optimization window length for the rolling simulation.
type Horizon string

const (
	HorizonDay   Horizon = "day"
	HorizonMonth Horizon = "month"
	HorizonYear  Horizon = "year"
)

// Mode selects dispatch-only or capacity-expansion modeling.
type Mode string

const (
	// ModeDispatch solves for operation with fixed asset sizes.
	ModeDispatch Mode = "dispatch"
	// ModeExpansion additionally optimizes asset sizes; requires HorizonYear.
	ModeExpansion Mode = "expansion"
)

// ScenarioConfig holds run-level settings independent of the tariff and
// assets.
type ScenarioConfig struct {
	Name            string  `json:"name" yaml:"name"`
	Year            int     `json:"year" yaml:"year"`
	IntervalMinutes int     `json:"intervalMinutes" yaml:"interval_minutes"`
	Horizon         Horizon `json:"horizon" yaml:"horizon"`
	Mode            Mode    `json:"mode" yaml:"mode"`

	// BinaryLinkage makes the export-eligibility indicators binary instead of
	// relaxed to [0,1].
	BinaryLinkage bool `json:"binaryLinkage" yaml:"binary_linkage"`

	// Backend names the solver backend; empty selects the default.
	Backend string `json:"backend,omitempty" yaml:"backend"`

	// Expansion-mode economics.
	ITCFraction  float64 `json:"itcFraction" yaml:"itc_fraction"`
	InterestRate float64 `json:"interestRate" yaml:"interest_rate"`
}

// Scenario is a fully validated run description: config, tariff and assets.
// Construct it with NewScenario; the zero value is not usable.
type Scenario struct {
	Config ScenarioConfig `json:"config" yaml:"config"`
	Tariff TariffSpec     `json:"tariff" yaml:"tariff"`
	Assets AssetSpecs     `json:"assets" yaml:"assets"`
}

// NewScenario validates the config, tariff, and asset specs together,
// applying documented defaults in the same pass. Every default taken is
// logged as a notice.
func NewScenario(ctx context.Context, cfg ScenarioConfig, tariff TariffSpec, assets AssetSpecs) (*Scenario, error) {
	var notices []string

	if cfg.Year < 1900 || cfg.Year > 3000 {
		return nil, configErrf("year", "year %d out of range", cfg.Year)
	}
	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = 60
		notices = append(notices, "interval defaulted to 60 minutes")
	}
	if err := validateInterval(cfg.IntervalMinutes); err != nil {
		return nil, err
	}
	if cfg.Horizon == "" {
		cfg.Horizon = HorizonYear
		notices = append(notices, "horizon defaulted to year")
	}
	switch cfg.Horizon {
	case HorizonDay, HorizonMonth, HorizonYear:
	default:
		return nil, configErrf("horizon", "unknown horizon %q", cfg.Horizon)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDispatch
		notices = append(notices, "mode defaulted to dispatch")
	}
	switch cfg.Mode {
	case ModeDispatch:
	case ModeExpansion:
		if cfg.Horizon != HorizonYear {
			// Sizing decisions made from a partial year carry no meaning; the
			// optimizer would size for the cheapest window.
			return nil, configErrf("mode", "expansion mode requires the year horizon")
		}
		if cfg.ITCFraction < 0 || cfg.ITCFraction >= 1 {
			return nil, configErrf("itcFraction", "must be within [0,1), got %.3f", cfg.ITCFraction)
		}
		if cfg.InterestRate < 0 || cfg.InterestRate >= 1 {
			return nil, configErrf("interestRate", "must be within [0,1), got %.3f", cfg.InterestRate)
		}
	default:
		return nil, configErrf("mode", "unknown mode %q", cfg.Mode)
	}

	tn, err := tariff.Validate(cfg.Year, cfg.IntervalMinutes)
	if err != nil {
		return nil, err
	}
	notices = append(notices, tn...)

	an, err := assets.Validate(cfg.Year, cfg.IntervalMinutes, cfg.Mode == ModeExpansion)
	if err != nil {
		return nil, err
	}
	notices = append(notices, an...)

	for _, n := range notices {
		log.Ctx(ctx).InfoContext(ctx, "scenario default applied", slog.String("scenario", cfg.Name), slog.String("notice", n))
	}

	return &Scenario{Config: cfg, Tariff: tariff, Assets: assets}, nil
}
