package cmd

import (
	"context"
	"fmt"
)

// CheckpointCmd snapshots a session's phase and context on demand
type CheckpointCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the checkpoint command
func (c *CheckpointCmd) Run(cli *CLI) error {
	if err := cli.Container.Tracker.Checkpoint(context.Background(), c.ID); err != nil {
		return fmt.Errorf("failed to checkpoint session: %w", err)
	}
	return nil
}

// ResumeCmd restores the most recent checkpoint. The caller is
// responsible for re-establishing externally-held working state; only
// what was captured comes back.
type ResumeCmd struct {
	ID    string `arg:"" help:"Session id"`
	Quiet bool   `help:"Print only the restored context" short:"q"`
}

// Run executes the resume command
func (r *ResumeCmd) Run(cli *CLI) error {
	restored, err := cli.Container.Tracker.Resume(context.Background(), r.ID)
	if err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}

	if r.Quiet {
		fmt.Println(restored.Context)
		return nil
	}

	fmt.Printf("phase: %s\n", restored.Phase)
	fmt.Printf("checkpointed: %s\n", restored.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if restored.Context != "" {
		fmt.Printf("context:\n%s\n", restored.Context)
	}
	return nil
}
