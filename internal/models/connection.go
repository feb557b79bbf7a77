package models

import (
	"fmt"
	"time"
)

// SourceKind identifies the kind of external database a connection points at.
// Adding a kind requires a matching adapter in internal/source; unknown kinds
// are rejected at registration time.
type SourceKind string

const (
	SourcePostgres SourceKind = "postgresql"
	SourceMySQL    SourceKind = "mysql"
	SourceMongoDB  SourceKind = "mongodb"
	SourceSQLite   SourceKind = "sqlite"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourcePostgres, SourceMySQL, SourceMongoDB, SourceSQLite:
		return true
	}
	return false
}

// ConnectionStatus tracks the test/connect lifecycle of a connection.
// A connection enters "testing" only while a connectivity test is in flight
// and resolves to exactly one of "connected" or "failed".
type ConnectionStatus string

const (
	StatusPending   ConnectionStatus = "pending"
	StatusTesting   ConnectionStatus = "testing"
	StatusConnected ConnectionStatus = "connected"
	StatusFailed    ConnectionStatus = "failed"
)

// SyncFrequency is the cadence at which a connection's data is refreshed.
type SyncFrequency string

const (
	FrequencyHourly  SyncFrequency = "hourly"
	FrequencyDaily   SyncFrequency = "daily"
	FrequencyWeekly  SyncFrequency = "weekly"
	FrequencyMonthly SyncFrequency = "monthly"
)

func (f SyncFrequency) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type Connection struct {
	ID                   string           `json:"id" db:"id"`
	Name                 string           `json:"name" db:"name"`
	SourceKind           SourceKind       `json:"source_kind" db:"source_kind"`
	EncryptedCredentials []byte           `json:"-" db:"encrypted_credentials"`
	Status               ConnectionStatus `json:"status" db:"status"`
	LastTestedAt         *time.Time       `json:"last_tested_at" db:"last_tested_at"`
	LastSyncAt           *time.Time       `json:"last_sync_at" db:"last_sync_at"`
	AnalyticsReady       bool             `json:"analytics_ready" db:"analytics_ready"`
	IsActive             bool             `json:"is_active" db:"is_active"`
	SyncFrequency        SyncFrequency    `json:"sync_frequency" db:"sync_frequency"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// AnalyticsTablePrefix is the naming prefix for tables this connection owns
// in the analytics store.
func (c *Connection) AnalyticsTablePrefix() string {
	return fmt.Sprintf("conn_%s_", c.ID)
}
