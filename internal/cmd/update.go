package cmd

import (
	"context"
	"fmt"

	"vigia/internal/domain"
	"vigia/internal/services"
)

// UpdateCmd applies a transactional mutation to a session
type UpdateCmd struct {
	Context string `help:"Context delta appended to the session's context" default:""`
	ID      string `arg:"" help:"Session id"`
	Phase   string `help:"Advance to this phase (checkpoints automatically)" enum:",context,plan,work,verify,done" default:""`
}

// Run executes the update command
func (u *UpdateCmd) Run(cli *CLI) error {
	params := services.UpdateParams{
		ContextDelta: u.Context,
		ID:           u.ID,
	}
	if u.Phase != "" {
		phase := domain.Phase(u.Phase)
		params.Phase = &phase
	}

	if err := cli.Container.Tracker.Update(context.Background(), params); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// AppendCmd records one action in a session's bounded log
type AppendCmd struct {
	ID          string `arg:"" help:"Session id"`
	Description string `arg:"" help:"What was done"`
	Outcome     string `help:"How it went" default:""`
}

// Run executes the append command
func (a *AppendCmd) Run(cli *CLI) error {
	if err := cli.Container.Tracker.Append(context.Background(), a.ID, a.Description, a.Outcome); err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}
	return nil
}
