// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks the user through onboarding in three views:
//  1. [LinkingView] : Link providers in order, showing device codes with a live countdown
//  2. [InitView] : Follow model initialization with a progress bar
//  3. [ResultView] : Summarize linked providers and the initialization outcome
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from a [tasks.Onboarder], so the engine never blocks on rendering.
//
// Keys: c skips the provider awaiting the user, o opens the verification link,
// r retries initialization after a backend failure and q quits.
package ui
