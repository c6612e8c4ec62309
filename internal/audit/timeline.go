package audit

import (
	"encoding/json"
	"time"
)

// TimelineFilters menampung filter audit timeline untuk satu organisasi.
type TimelineFilters struct {
	OrganizationID int64
	From           time.Time
	To             time.Time
	ActorID        int64
	Entity         string
	EntityID       string
	Action         string
	Page           int
	PageSize       int
}

// TimelineRow mewakili satu baris audit_logs.
type TimelineRow struct {
	ID       int64           `json:"id"`
	At       time.Time       `json:"at"`
	ActorID  int64           `json:"actor_id,omitempty"`
	Action   string          `json:"action"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entity_id"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// PagingInfo menyimpan metadata pagination tanpa COUNT(*).
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []TimelineRow `json:"data"`
	Paging PagingInfo    `json:"paging"`
}
