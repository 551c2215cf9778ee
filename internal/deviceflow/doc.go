// Package deviceflow runs the client side of the OAuth 2.0 Device Authorization Grant (RFC 8628).
//
// # Lifecycle
//
// [Controller.Start] requests a device grant, reports the user code, and polls the
// token endpoint until the user approves, denies, or the code expires:
//
//	idle → issuing → awaiting_user_action → polling → succeeded | failed | cancelled
//
// Polls are serialized: the next poll is scheduled only after the previous one
// resolves, every max(interval, 5) seconds. Each slow_down adds five seconds to
// the interval for the rest of the attempt. Transport errors while polling are
// logged and polling continues.
//
// # Countdown
//
// A one-second countdown runs next to the poll timer and starts at expires_in.
// When it reaches zero the attempt fails with reason "expired" whatever the last
// poll returned. Countdown ticks are informational and may be dropped when the
// reader falls behind; state transitions are never dropped.
//
// # Cancellation
//
// [Controller.Cancel] and cancellation of the Start context end the attempt with
// a single cancelled update. A poll in flight at that moment is abandoned and its
// result discarded. Both timers are released on every exit path.
package deviceflow
