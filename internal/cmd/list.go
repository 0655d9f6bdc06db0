package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"vigia/internal/domain"
	"vigia/internal/services"
)

// ListCmd enumerates sessions outside the transaction fast path
type ListCmd struct {
	Archived bool   `help:"List archived sessions instead of the working set"`
	JSON     bool   `help:"Output as JSON" name:"json"`
	Role     string `help:"Only sessions with this role" default:""`
	Roots    bool   `help:"Only root sessions"`
	Status   string `help:"Only sessions with this status" enum:",active,paused,completed,orphaned,stale,abandoned" default:""`
}

// Run executes the list command
func (l *ListCmd) Run(cli *CLI) error {
	ctx := context.Background()

	if l.Archived {
		return l.runArchived(ctx, cli)
	}

	sessions, err := cli.Container.Tracker.List(ctx, services.ListFilter{
		Role:      l.Role,
		RootsOnly: l.Roots,
		Status:    domain.Status(l.Status),
	})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if l.JSON {
		return printJSON(sessions)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tDEPTH\tPHASE\tSTATUS\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Role, depthIndicator(s.Depth), s.Phase, s.Status,
			relativeAge(s.UpdatedAt))
	}
	return w.Flush()
}

// runArchived reads the archive database instead of the working set
func (l *ListCmd) runArchived(ctx context.Context, cli *CLI) error {
	archive, err := cli.Container.Archive()
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	archived, err := archive.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archive: %w", err)
	}

	if l.JSON {
		return printJSON(archived)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tSTATUS\tREASON\tARCHIVED")
	for _, a := range archived {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Role, a.Status, a.Reason, relativeAge(a.ArchivedAt))
	}
	return w.Flush()
}

// ShowCmd prints one session in detail
type ShowCmd struct {
	ID   string `arg:"" help:"Session id"`
	JSON bool   `help:"Output as JSON" name:"json"`
}

// Run executes the show command
func (s *ShowCmd) Run(cli *CLI) error {
	ctx := context.Background()

	session, err := cli.Container.Tracker.Get(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if s.JSON {
		return printJSON(session)
	}

	fmt.Printf("id:      %s\n", session.ID)
	fmt.Printf("name:    %s\n", session.Name)
	fmt.Printf("role:    %s\n", session.Role)
	if session.ParentID != nil {
		fmt.Printf("parent:  %s (depth %d)\n", *session.ParentID, session.Depth)
	}
	fmt.Printf("phase:   %s\n", session.Phase)
	fmt.Printf("status:  %s\n", session.Status)
	fmt.Printf("created: %s\n", session.CreatedAt.Format(time.RFC3339))
	fmt.Printf("updated: %s (%s)\n", session.UpdatedAt.Format(time.RFC3339), relativeAge(session.UpdatedAt))
	if session.Result != "" {
		fmt.Printf("result:  %s\n", session.Result)
	}

	if payload, err := cli.Container.Tracker.Context(ctx, s.ID); err == nil && payload != "" {
		fmt.Printf("context:\n%s\n", indent(payload))
	}

	if len(session.Checkpoints) > 0 {
		fmt.Printf("checkpoints (%d, newest first):\n", len(session.Checkpoints))
		for _, cp := range session.Checkpoints {
			fmt.Printf("  %s  %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"), cp.Phase)
		}
	}

	if len(session.Actions) > 0 {
		fmt.Printf("actions (%d):\n", len(session.Actions))
		for _, a := range session.Actions {
			line := fmt.Sprintf("  %s  %s", a.Timestamp.Format("2006-01-02 15:04:05"), a.Description)
			if a.Outcome != "" {
				line += " -> " + a.Outcome
			}
			fmt.Println(line)
		}
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func depthIndicator(depth int) string {
	if depth == 0 {
		return "root"
	}
	return fmt.Sprintf("%s%d", strings.Repeat("·", depth), depth)
}

func relativeAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
