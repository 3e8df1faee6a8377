package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Decklist is one observed deck. Cards holds display names as scraped; they
// are canonicalized before any counting happens.
type Decklist struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

type DecklistBatch struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Decklists []Decklist `json:"decklists"`
}

const (
	BatchStatusPending = "pending"
	BatchStatusRunning = "running"
	BatchStatusDone    = "done"
	BatchStatusFailed  = "failed"
)

// DecklistBatchRecord is the archived copy of a batch together with its
// processing state. The archive is the source of truth for sync counts.
type DecklistBatchRecord struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	Source       string         `gorm:"column:source;index" json:"source"`
	Payload      datatypes.JSON `gorm:"column:payload" json:"payload"`
	Decklists    int            `gorm:"column:decklists;not null;default:0" json:"decklists"`
	Status       string         `gorm:"column:status;index" json:"status"`
	Attempts     int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	PairsApplied int64          `gorm:"column:pairs_applied;not null;default:0" json:"pairs_applied"`
	LastError    string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	ProcessedAt  *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (DecklistBatchRecord) TableName() string { return "decklist_batches" }
