package archive

import "time"

// ArchivedSessionModel is the GORM model for the archived_sessions table.
// Actions and checkpoints are stored as serialized JSON columns since the
// archive is append-only and never queried by their contents.
type ArchivedSessionModel struct {
	ActionsJSON     string `gorm:"not null;default:'[]'"`
	ArchivedAt      time.Time
	CheckpointsJSON string `gorm:"not null;default:'[]'"`
	CompletedAt     *time.Time `gorm:"default:null"`
	Context         string     `gorm:"default:''"`
	CreatedAt       time.Time
	Depth           int     `gorm:"not null;default:0"`
	ID              string  `gorm:"primaryKey"`
	Name            string  `gorm:"not null;index:idx_name"`
	ParentID        *string `gorm:"index:idx_parent;default:null"`
	Phase           string  `gorm:"not null"`
	Reason          string  `gorm:"not null;default:''"`
	Result          string  `gorm:"default:''"`
	Role            string  `gorm:"not null;default:''"`
	SessionUpdated  time.Time
	Status          string `gorm:"not null;index:idx_status"`
	UpdatedAt       time.Time
}

// TableName specifies the table name for GORM
func (ArchivedSessionModel) TableName() string { return "archived_sessions" }
