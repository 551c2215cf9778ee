package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
	"github.com/desertthunder/soundlink/internal/ui"
)

// defaultTUILog is used when log.file is not configured.
const defaultTUILog = "./tmp/soundlink-tui.log"

// useFileLogger redirects logs to a rotating file so they do not interfere
// with TUI rendering. The returned func restores the previous logger.
func (r *Runner) useFileLogger() (func(), error) {
	cfg := r.config.Log
	if cfg.File == "" {
		cfg.File = defaultTUILog
	}
	fileLogger, closer, err := shared.NewFileLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())

	previous := r.logger
	r.SetLogger(fileLogger)
	return func() {
		r.SetLogger(previous)
		closer.Close()
	}, nil
}

// runTUI runs onboarding inside the interactive terminal UI.
func (r *Runner) runTUI(ctx context.Context, engine tasks.Onboarder, providers []models.Provider, identity models.Identity) (*tasks.OnboardingResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, engine, providers, identity)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	result, err := model.Result()
	if result == nil && err == nil {
		return nil, fmt.Errorf("%w: onboarding stopped before finishing", shared.ErrCancelled)
	}
	return result, err
}
