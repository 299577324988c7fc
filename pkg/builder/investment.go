package builder

import (
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// capitalRecoveryFactor converts an upfront cost into an equivalent annual
// payment over the asset lifespan at the given interest rate.
func capitalRecoveryFactor(rate float64, years int) float64 {
	if years <= 0 {
		return 0
	}
	if rate == 0 {
		return 1 / float64(years)
	}
	g := math.Pow(1+rate, float64(years))
	return rate * g / (g - 1)
}

// buildInvestment charges the annualized, incentive-adjusted capital cost of
// every optimized capacity. Expansion mode always runs a full-year window, so
// the annualized cost lands in the objective unscaled.
func (b *Builder) buildInvestment() error {
	s := b.sets
	if s.Scenario.Config.Mode != types.ModeExpansion {
		return nil
	}

	cfg := s.Scenario.Config
	itc := 1 - cfg.ITCFraction
	cost := lp.NewExpr(0)

	if b.out.SolarCapVar >= 0 {
		solar := s.Scenario.Assets.Solar
		crf := capitalRecoveryFactor(cfg.InterestRate, solar.LifespanYears)
		cost.Add(b.out.SolarCapVar, solar.CostPerKW*crf*itc)
	}
	if b.out.EnergyCapVar >= 0 {
		storage := s.Scenario.Assets.Storage
		crf := capitalRecoveryFactor(cfg.InterestRate, storage.LifespanYears)
		cost.Add(b.out.EnergyCapVar, storage.CostPerKWH*crf*itc)
	}

	if len(cost.Terms) == 0 {
		return nil
	}
	b.addCost(types.CostInvestment, cost)
	return nil
}
