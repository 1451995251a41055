// Package triage turns per-condition model probabilities into an urgency
// level. Flags are assigned against review and urgent thresholds and the
// highest flag decides the case level.
package triage
