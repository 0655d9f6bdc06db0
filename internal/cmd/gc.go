package cmd

import (
	"context"
	"fmt"
)

// GcCmd sweeps terminal sessions out of the working set into the archive
type GcCmd struct{}

// Run executes the gc command
func (g *GcCmd) Run(cli *CLI) error {
	gc, err := cli.Container.GC()
	if err != nil {
		return fmt.Errorf("failed to initialize gc: %w", err)
	}

	result, err := gc.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("gc sweep failed: %w", err)
	}

	fmt.Printf("archived %d session(s), %d remaining in the working set\n",
		len(result.Archived), result.Retained)
	return nil
}
