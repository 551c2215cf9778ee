// Package linking links a user's account to an ordered list of music providers.
//
// # Sequencing
//
// [Sequencer.Run] walks the provider list strictly in order. Device providers
// get a fresh [deviceflow.Controller] each; direct providers resolve with one
// [Client.LinkDirect] call. The next provider starts only after the previous one
// resolved, so at most one authorization prompt is open at any time.
//
// # Partial Failure
//
// Linking is best-effort per provider. A denied, expired, cancelled or
// unreachable provider is marked skipped and the run continues. With a [Syncer]
// configured, a device provider whose follow-up sync fails stays completed but
// is reported with Success false and reason "sync_failed".
//
// # Events
//
// The event stream carries exactly one [EntryResolved] per provider, in input
// order, followed by one [AllLinked] with the ordered results. The optional
// activity stream carries cosmetic updates for UI binding and drops values
// when its reader falls behind.
package linking
