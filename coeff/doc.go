// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package coeff provides the configuration store for scoring coefficients.

Coefficients are named decimal values mutable by operators at any time
(RAW_WEIGHT_QUALITY, ETHICS_MULTIPLIER_CAP, ...). Reads go through a
bounded LRU cache with a short TTL; Set invalidates the entry in the
same process immediately, and the TTL bounds staleness for out-of-band
writes. A coefficient with no stored row resolves to its documented
default and logs a warning rather than failing.
*/
package coeff
