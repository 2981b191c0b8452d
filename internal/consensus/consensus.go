// Package consensus aggregates reporter observations into one price.
//
// Only reports younger than the staleness window take part. The result is
// the truncated mean, and it is rejected outright when any alive report
// lies further than 1% of the mean away from it.
package consensus

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"price-registry/internal/domain"
)

// StalenessWindow is the maximum age of a report that still counts.
const StalenessWindow = 5 * time.Minute

// deviationDivisor bounds |report - mean| by mean / deviationDivisor.
const deviationDivisor = 100

// ErrUnstable is returned when alive reports disagree beyond tolerance.
var ErrUnstable = errors.New("unstable consensus")

// Result describes one aggregation.
type Result struct {
	Price uint64 // truncated mean, 0 when no report is alive
	Alive int    // number of reports that took part
	Min   uint64
	Max   uint64
}

// Alive reports whether r is young enough to take part at now (unix seconds).
func Alive(r domain.ReporterReport, now uint64) bool {
	if r.Timestamp >= now {
		return true
	}
	return now-r.Timestamp <= uint64(StalenessWindow/time.Second)
}

// Aggregate computes the consensus over reports at now.
// A zero Price with nil error means no report was alive.
func Aggregate(reports []domain.ReporterReport, now uint64) (Result, error) {
	var res Result
	sum := new(big.Int)

	for _, r := range reports {
		if !Alive(r, now) {
			continue
		}
		if res.Alive == 0 || r.Price < res.Min {
			res.Min = r.Price
		}
		if r.Price > res.Max {
			res.Max = r.Price
		}
		sum.Add(sum, new(big.Int).SetUint64(r.Price))
		res.Alive++
	}

	if res.Alive == 0 {
		return Result{}, nil
	}

	// The mean lies within [Min, Max], so it always fits in uint64.
	avg := sum.Quo(sum, big.NewInt(int64(res.Alive))).Uint64()
	bound := avg / deviationDivisor

	if avg-res.Min > bound || res.Max-avg > bound {
		return res, fmt.Errorf("%w: mean %d, min %d, max %d, tolerance %d",
			ErrUnstable, avg, res.Min, res.Max, bound)
	}

	res.Price = avg
	return res, nil
}
