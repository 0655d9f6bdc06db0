package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"vigia/internal/config"
	"vigia/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Start      StartCmd      `cmd:"" help:"Start a new session (root or child)"`
	Update     UpdateCmd     `cmd:"" help:"Apply a phase transition and/or context delta to a session"`
	Append     AppendCmd     `cmd:"" help:"Record an action in a session's log"`
	Checkpoint CheckpointCmd `cmd:"" help:"Snapshot a session's phase and context"`
	Resume     ResumeCmd     `cmd:"" help:"Restore the most recent checkpoint of a session"`
	Pause      PauseCmd      `cmd:"" help:"Suspend an active session"`
	Unpause    UnpauseCmd    `cmd:"" help:"Return a paused session to active"`
	Complete   CompleteCmd   `cmd:"" help:"Terminate a session with its result"`
	Abandon    AbandonCmd    `cmd:"" help:"Terminate a session without a result"`
	Dispose    DisposeCmd    `cmd:"" help:"Decide what to do with a stale session"`
	List       ListCmd       `cmd:"" help:"List sessions"`
	Show       ShowCmd       `cmd:"" help:"Show one session in detail"`
	Gc         GcCmd         `cmd:"" help:"Archive terminal sessions past retention"`
	Watch      WatchCmd      `cmd:"" help:"Live session table"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults.
	// Only apply a setting if the flag is at its default and no env var
	// is set.
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("VIGIA_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}

		if !c.Debug {
			if _, hasEnv := os.LookupEnv("VIGIA_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Child processes (delegated workers invoking vigia themselves)
	// inherit debug settings and append to the same log file so parent
	// and child logs correlate.
	if c.Debug || c.DebugFile != "" {
		os.Setenv("VIGIA_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("VIGIA_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != 1000 {
		os.Setenv("VIGIA_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	if c.settings == nil {
		c.settings = &config.Settings{}
	}
	container, err := NewContainer(c.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}
