// Package store contains GORM-backed SQLite models for the local tip journal.
//
// Database Structure (database file: tips.db):
//
//	tips         one row per tip request, updated as it progresses
//	tip_statuses every status emitted for a request, in order
package store

import (
	"time"

	"gorm.io/gorm"
)

// Tip is the current state of one tip request
type Tip struct {
	gorm.Model
	RequestID      string `gorm:"uniqueIndex;not null"` // tip_<unix millis>_<suffix>
	SourceChainID  int64  `gorm:"index"`
	TargetChainID  int64
	Path           string // "native" or "bridged"
	Recipient      string `gorm:"index"`
	AmountUSD      string // decimal string, e.g. "5.00"
	Message        string `gorm:"type:text"`
	EventID        string `gorm:"index"`
	SpeakerID      string
	Status         string `gorm:"index;not null"` // "pending", "bridging", "confirming", "completed", "failed"
	TxHash         string
	RouteReference string
	ErrorMsg       string `gorm:"type:text"`
	CompletedAt    *time.Time
}

// TipStatus is one status transition of a tip request
type TipStatus struct {
	gorm.Model
	RequestID      string `gorm:"index;not null"`
	Status         string `gorm:"not null"`
	TxHash         string
	RouteReference string
	Message        string `gorm:"type:text"`
	EmittedAt      time.Time
}

// TableName specifies the table name for TipStatus.
func (TipStatus) TableName() string {
	return "tip_statuses"
}
