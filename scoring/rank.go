// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

// percentileRank returns the [0,1] standing of value within cohort.
//
// The rank is countStrictlyBelow / (n-1): the cohort minimum maps to 0,
// a unique maximum maps to 1, and tied values share the rank of their
// strictly-below count. A cohort of size one (or smaller) ranks 0 -
// there is no variance to rank against.
func percentileRank(cohort []decimal.Decimal, value decimal.Decimal) decimal.Decimal {
	n := len(cohort)
	if n <= 1 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, cohort)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	below := sort.Search(n, func(i int) bool {
		return !sorted[i].LessThan(value)
	})

	return decimal.NewFromInt(int64(below)).
		Div(decimal.NewFromInt(int64(n - 1)))
}
