// Package cases is the business boundary for chest-imaging triage cases.
//
// A Case is created from a patient snapshot and the model's per-condition
// probabilities, classified by the triage package, persisted through a Store
// (PostgreSQL or in-memory) behind a Repository, compared against the owner's
// other open cases on read and finally resolved by its owning clinician.
// Every read passes through Sanitize, so stored documents of any vintage decode
// to a well-formed Case.
package cases
