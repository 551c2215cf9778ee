// Package tasks orchestrates onboarding: provider linking followed by model initialization.
//
// # Core Operations
//
// The [Onboarder] interface defines the operations:
//
//  1. [Onboarder.LinkAndInitialize] : Link providers, then initialize once
//     - Runs a [linking.Sequencer] over the provider list
//     - Skipped providers are reported, never returned as errors
//     - Runs the [initgate.Gate] exactly once after linking
//
//  2. [Onboarder.RetryInitialization] : Manual retry after an initialization failure
//
//  3. [Onboarder.CancelActive] : Dismiss the device code currently shown
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Device code updates carry the [deviceflow.Update] so a UI can show the user code and countdown.
//
// # Recording
//
// The optional [Recorder] interface persists one record per provider and one per initialization run.
// Recording errors are logged and ignored.
package tasks
