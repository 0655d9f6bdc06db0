package cmd

import (
	"context"
	"fmt"
)

// PauseCmd suspends an active session without touching its context
type PauseCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the pause command
func (p *PauseCmd) Run(cli *CLI) error {
	if err := cli.Container.Tracker.Pause(context.Background(), p.ID); err != nil {
		return fmt.Errorf("failed to pause session: %w", err)
	}
	return nil
}

// UnpauseCmd returns a paused session to active
type UnpauseCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the unpause command
func (u *UnpauseCmd) Run(cli *CLI) error {
	if err := cli.Container.Tracker.Unpause(context.Background(), u.ID); err != nil {
		return fmt.Errorf("failed to unpause session: %w", err)
	}
	return nil
}

// CompleteCmd terminates a session with its result
type CompleteCmd struct {
	ID     string `arg:"" help:"Session id"`
	Result string `arg:"" help:"Outcome recorded against the session"`
}

// Run executes the complete command
func (c *CompleteCmd) Run(cli *CLI) error {
	outcome, err := cli.Container.Tracker.Complete(context.Background(), c.ID, c.Result)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}

	if outcome.Orphaned {
		fmt.Printf("parent unreachable (%s); result preserved in a recovery artifact for session %s\n",
			outcome.Reason, c.ID)
	}
	return nil
}

// AbandonCmd terminates a session with no result
type AbandonCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the abandon command
func (a *AbandonCmd) Run(cli *CLI) error {
	if err := cli.Container.Tracker.Abandon(context.Background(), a.ID); err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	return nil
}
