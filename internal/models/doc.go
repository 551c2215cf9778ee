// Package models defines domain values and persistence interfaces for the soundlink account linking service.
//
// The package contains two categories of types:
//
// 1. Flow values: immutable data passed between the linking components
//   - [DeviceGrant] : Device authorization response (RFC 8628 §3.2)
//   - [PollResult] : Tagged result of one token endpoint poll
//   - [TokenBundle] : Opaque credentials handed back to the caller
//   - [FlowState], [SequenceEntry], [InitRun] : State reported to the UI
//   - [Identity] : Session identity shared read-only across a run
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [LinkRecord] : Per-provider linking outcome for a session
//   - [InitRecord] : Initialization outcome for a session
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
