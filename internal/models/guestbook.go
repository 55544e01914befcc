// Package models defines the guestbook domain types and API error shapes.
package models

import (
	"time"
)

// Message and name bounds applied at submission time.
const (
	MaxMessageLength = 480
	MaxNameLength    = 50
	DefaultName      = "Anonymous"
)

// EntryStatus is the moderation state derived from the approved/rejected flags.
type EntryStatus string

// Moderation states.
const (
	StatusPending  EntryStatus = "pending"
	StatusApproved EntryStatus = "approved"
	StatusRejected EntryStatus = "rejected"
)

// ParseStatus maps a raw query value onto a listable status.
// Only pending and approved can be listed; anything else reports false.
func ParseStatus(raw string) (EntryStatus, bool) {
	switch EntryStatus(raw) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	default:
		return "", false
	}
}

// GuestbookEntry is a single visitor message.
//
// SubmitterFingerprint is a SHA-256 digest of the submitter's address. It is
// never serialized.
type GuestbookEntry struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Message              string     `json:"message"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
	Edited               bool       `json:"edited"`
	Approved             bool       `json:"approved"`
	Rejected             bool       `json:"rejected"`
	SubmitterFingerprint string     `json:"-"`
}

// DeriveStatus resolves the flag pair into a single state.
// rejected wins over pending, pending wins over approved.
func DeriveStatus(approved, rejected bool) EntryStatus {
	switch {
	case rejected:
		return StatusRejected
	case !approved:
		return StatusPending
	default:
		return StatusApproved
	}
}

// Status returns the derived moderation state of the entry.
func (e *GuestbookEntry) Status() EntryStatus {
	return DeriveStatus(e.Approved, e.Rejected)
}

// Matches reports whether the entry belongs in a listing for status.
func (e *GuestbookEntry) Matches(status EntryStatus) bool {
	return e.Status() == status
}

// Clone returns a copy that shares no pointers with e.
func (e *GuestbookEntry) Clone() *GuestbookEntry {
	cp := *e
	if e.UpdatedAt != nil {
		t := *e.UpdatedAt
		cp.UpdatedAt = &t
	}
	return &cp
}

// EntryResponse is the public representation of an entry.
type EntryResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Message   string      `json:"message"`
	Status    EntryStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at"`
	Edited    bool        `json:"edited"`
	Approved  bool        `json:"approved"`
	Rejected  bool        `json:"rejected"`
}

// ToResponse converts the entry into its wire form, dropping the fingerprint.
func (e *GuestbookEntry) ToResponse() EntryResponse {
	name := e.Name
	if name == "" {
		name = DefaultName
	}
	return EntryResponse{
		ID:        e.ID,
		Name:      name,
		Message:   e.Message,
		Status:    e.Status(),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Edited:    e.Edited,
		Approved:  e.Approved,
		Rejected:  e.Rejected,
	}
}

// ToResponses converts a slice of entries, never returning nil.
func ToResponses(entries []*GuestbookEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToResponse())
	}
	return out
}
