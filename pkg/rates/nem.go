package rates

import (
	"time"

	"github.com/dersolve/dersolve/pkg/types"
)

// compileSellPrice derives the per-timestep NEM export credit rate.
//
//	v1: full retail energy price
//	v2: retail energy price minus the non-bypassable charge
//	v3: externally supplied avoided cost (optionally averaged by month, hour
//	    and weekday-vs-weekend/holiday) minus the non-bypassable charge
func compileSellPrice(tariff *types.TariffSpec, cfg types.ScenarioConfig, energy types.TimeSeries) (types.TimeSeries, error) {
	sell := types.ZeroSeries(cfg.Year, cfg.IntervalMinutes)

	switch tariff.NEM.Version {
	case types.NEMV1:
		copy(sell.Values, energy.Values)
	case types.NEMV2:
		for i, v := range energy.Values {
			sell.Values[i] = v - tariff.NEM.NonBypassableDollarsPerKWH
		}
	case types.NEMV3:
		avoided := tariff.NEM.AvoidedCost
		if avoided == nil {
			return sell, compileErrf("NEM v3 requires an avoided-cost series")
		}
		if avoided.Len() != sell.Len() {
			return sell, compileErrf("avoided-cost series has %d values, expected %d", avoided.Len(), sell.Len())
		}
		values := avoided.Values
		if tariff.NEM.AverageAvoidedCost {
			values = averageByPeriod(*avoided)
		}
		for i, v := range values {
			sell.Values[i] = v - tariff.NEM.NonBypassableDollarsPerKWH
		}
	default:
		return sell, compileErrf("unknown NEM version %d", tariff.NEM.Version)
	}

	return sell, nil
}

// averageByPeriod replaces every value with the mean of its
// (month, hour, weekday-vs-weekend/holiday) bucket. Buckets with a single
// member are unchanged.
func averageByPeriod(ts types.TimeSeries) []float64 {
	type bucketKey struct {
		month  time.Month
		hour   int
		offDay bool
	}
	sums := make(map[bucketKey]float64)
	counts := make(map[bucketKey]int)
	keys := make([]bucketKey, ts.Len())

	holidays := holidaySet(ts.Year)
	for i, v := range ts.Values {
		t := ts.TimestampAt(i)
		k := bucketKey{
			month:  t.Month(),
			hour:   t.Hour(),
			offDay: isWeekend(t) || holidays[t.YearDay()],
		}
		keys[i] = k
		sums[k] += v
		counts[k]++
	}

	out := make([]float64, ts.Len())
	for i := range out {
		k := keys[i]
		out[i] = sums[k] / float64(counts[k])
	}
	return out
}
