package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"vigia/internal/domain"
)

// DisposeCmd records the explicit decision on a stale session. Without
// --action it prompts interactively.
type DisposeCmd struct {
	Action string `help:"Disposition to record" enum:",resume,abandon,new" default:""`
	ID     string `arg:"" help:"Session id"`
}

// Run executes the dispose command
func (d *DisposeCmd) Run(cli *CLI) error {
	action := d.Action
	if action == "" {
		chosen, err := d.prompt(cli)
		if err != nil {
			return err
		}
		action = chosen
	}

	disposition := domain.Disposition(action)
	if err := cli.Container.Tracker.Dispose(context.Background(), d.ID, disposition); err != nil {
		return fmt.Errorf("failed to dispose session: %w", err)
	}

	switch disposition {
	case domain.DispositionResume:
		fmt.Printf("session %s is active again\n", d.ID)
	case domain.DispositionAbandon:
		fmt.Printf("session %s abandoned\n", d.ID)
	case domain.DispositionNew:
		fmt.Printf("session %s left untouched; use 'vigia start' for a fresh root\n", d.ID)
	}
	return nil
}

// prompt asks for a disposition interactively
func (d *DisposeCmd) prompt(cli *CLI) (string, error) {
	session, err := cli.Container.Tracker.Get(context.Background(), d.ID)
	if err != nil {
		return "", err
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Session %q has gone stale. What should happen to it?", session.Name)).
				Description(fmt.Sprintf("last activity %s", session.UpdatedAt.Format("2006-01-02 15:04:05 MST"))).
				Options(
					huh.NewOption("Resume — treat it as still valid and continue", "resume"),
					huh.NewOption("Abandon — terminate it and release its resources", "abandon"),
					huh.NewOption("Start new — leave it untouched, begin a fresh root", "new"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("disposition prompt cancelled: %w", err)
	}
	return choice, nil
}
