package ui

import (
	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/tasks"
)

type progressUpdateMsg tasks.ProgressUpdate

type onboardingDoneMsg struct {
	result *tasks.OnboardingResult
	err    error
}

type retryDoneMsg struct {
	outcome *initgate.Outcome
	err     error
}
