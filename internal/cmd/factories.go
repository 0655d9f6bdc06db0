package cmd

import (
	"time"

	adapterarchive "vigia/internal/adapters/archive"
	"vigia/internal/adapters/statefile"
	"vigia/internal/config"
	"vigia/internal/ports"
	"vigia/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	Settings *config.Settings
	Store    *statefile.FileStore
	Tracker  *services.Tracker

	// The archive database is opened lazily: most operations never
	// touch it.
	archive ports.ArchiveRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	var opts []statefile.Option
	if settings.BackupCount != nil {
		opts = append(opts, statefile.WithBackupCount(*settings.BackupCount))
	}

	store, err := statefile.NewFileStore(config.GetStateDir(), opts...)
	if err != nil {
		return nil, err
	}

	tracker := services.NewTracker(store, store, store, trackerConfig(settings))

	return &Container{
		Settings: settings,
		Store:    store,
		Tracker:  tracker,
	}, nil
}

// trackerConfig maps configured limits onto the tracker's knobs
func trackerConfig(settings *config.Settings) services.TrackerConfig {
	cfg := services.TrackerConfig{
		StaleThreshold: settings.StaleThreshold(),
	}
	if settings.ContextInlineLimit != nil {
		cfg.ContextInlineLimit = *settings.ContextInlineLimit
	}
	if settings.MaxActions != nil {
		cfg.MaxActions = *settings.MaxActions
	}
	if settings.MaxActiveRoots != nil {
		cfg.MaxActiveRoots = *settings.MaxActiveRoots
	}
	if settings.MaxCheckpoints != nil {
		cfg.MaxCheckpoints = *settings.MaxCheckpoints
	}
	return cfg
}

// Archive opens (once) and returns the archive repository
func (c *Container) Archive() (ports.ArchiveRepository, error) {
	if c.archive != nil {
		return c.archive, nil
	}
	repo, err := adapterarchive.NewSQLiteRepository(c.Settings.ArchivePath())
	if err != nil {
		return nil, err
	}
	c.archive = repo
	return repo, nil
}

// GC wires a garbage collection service over the store and archive
func (c *Container) GC() (*services.GCService, error) {
	archive, err := c.Archive()
	if err != nil {
		return nil, err
	}

	retention := services.DefaultRetention
	if c.Settings.RetentionHours != nil {
		retention = time.Duration(*c.Settings.RetentionHours) * time.Hour
	}
	return services.NewGCService(c.Store, c.Store, c.Store, archive, retention), nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.archive != nil {
		return c.archive.Close()
	}
	return nil
}
