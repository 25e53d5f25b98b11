// Package models defines the vault-level types shared by storage, index and services.
package models

import "time"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a checkbox list item scraped from a note.
type Task struct {
	Path string `json:"path"`
	Text string `json:"text"`
	Done bool   `json:"done"`
	Line int    `json:"line"`
}

// ParaItem is one entry (a folder with an index note) of a PARA category.
type ParaItem struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags"`
}
