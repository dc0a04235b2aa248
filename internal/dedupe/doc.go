// Package dedupe provides update deduplication using a persistent,
// time-bounded ledger so duplicate deliveries within the retention window
// are processed at most once.
package dedupe
