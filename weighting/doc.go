// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package weighting computes the scalar voting weight attached to a ballot.

ComputeWeight is the synchronous hot path called by the vote-casting
service before every ballot insert:

 1. resolve the consultation (unknown id is an error, not a zero weight)
 2. fetch the consultation's relevance vector {domain → relevance}
 3. fetch the user's expertise vector {domain → weighted score}
 4. dot product over the relevance domains only
 5. cap at ETHICS_MULTIPLIER_CAP
 6. multiply by the user's raw ethics score
 7. round to 4 fractional digits

Both vectors are read far more often than written, so they sit in
bounded TTL caches with explicit invalidation: SetRelevance invalidates
the consultation vector, and the scoring engine's score-changed hook
invalidates the user vector through InvalidateUser.

Errors propagate to the caller and must block vote casting; there is no
default weight.
*/
package weighting
