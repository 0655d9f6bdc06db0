package cmd

import (
	"context"
	"fmt"

	"vigia/internal/services"
)

// StartCmd starts a new session
type StartCmd struct {
	Context string `help:"Initial context payload" default:""`
	Name    string `arg:"" help:"Human-readable task label"`
	Parent  string `help:"Parent session id (omit for a root session)" default:""`
	Role    string `help:"Actor performing the session (open tag, e.g. orchestrator, researcher)" default:"worker"`
}

// Run executes the start command
func (s *StartCmd) Run(cli *CLI) error {
	params := services.StartParams{
		Context: s.Context,
		Name:    s.Name,
		Role:    s.Role,
	}
	if s.Parent != "" {
		params.ParentID = &s.Parent
	}

	id, err := cli.Container.Tracker.Start(context.Background(), params)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Println(id)
	return nil
}
