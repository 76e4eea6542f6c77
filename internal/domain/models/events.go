package models

import "time"

const (
	CacheIntelligence = "intelligence"
	CacheQuotes       = "quotes"
)

// RefreshEvent is published after every target refresh.
type RefreshEvent struct {
	RunID       string    `json:"runId"`
	Cache       string    `json:"cache"`
	Key         string    `json:"key"`
	Tier        string    `json:"tier"`
	Outcome     string    `json:"outcome"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RefreshRecord is one audit row for the refresh log.
type RefreshRecord struct {
	RunID      string
	Cache      string
	Key        string
	Tier       string
	Outcome    string
	Error      string
	DurationMS int64
	At         time.Time
}

// RefreshCommand asks for a refresh of a whole cache or a single key.
type RefreshCommand struct {
	Cache string `json:"cache" query:"cache" default:"intelligence" validate:"oneof=intelligence quotes"`
	Asset string `json:"asset" query:"asset" validate:"omitempty,max=32"`
}
