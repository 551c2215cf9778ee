// Package repositories implements SQLite persistence for onboarding outcomes.
//
// Each repository handles CRUD operations with atomic sequence generation.
// Records are soft-deleted via deleted_at and excluded from queries by default.
//
//   - [LinkRepository] : one row per provider per session, with [LinkRepository.LatestByProvider] for status listings
//   - [InitRunRepository] : initialization outcomes per user
//   - [Recorder] : adapts both repositories to the onboarding engine's recorder hook
//
// [NextSequence] increments the per-table counter stored in <table>_sequence.
package repositories
