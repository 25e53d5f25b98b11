package api

import (
	"github.com/starford/almanac/internal/dailyrecord"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/service"
)

// CreatePeriodicRequest is the request body for creating a periodic note.
type CreatePeriodicRequest struct {
	Kind string `json:"kind" example:"weekly" validate:"required"`
	Date string `json:"date,omitempty" example:"2024-03-15"`
}

// CreateParaRequest is the request body for adding a PARA item.
type CreateParaRequest struct {
	Category string `json:"category" example:"projects" validate:"required"`
	Name     string `json:"name" example:"Garden" validate:"required"`
	Tag      string `json:"tag,omitempty" example:"project"`
}

// ArchiveParaRequest is the request body for archiving a PARA item.
type ArchiveParaRequest struct {
	Path string `json:"path" example:"1. Projects/Garden" validate:"required"`
}

// ArchiveParaResponse reports where an archived item went.
type ArchiveParaResponse struct {
	Path string `json:"path" example:"4. Archives/Garden" validate:"required"`
}

// PeriodResponse is the resolution of a periodic note name.
type PeriodResponse = period.Resolution

// PeriodicNoteResponse is a created periodic note.
type PeriodicNoteResponse = service.PeriodicNote

// TaskListResponse wraps the tasks of a period.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks" validate:"required"`
}

// LinkListResponse wraps the links found under a header.
type LinkListResponse struct {
	Links []string `json:"links" validate:"required"`
}

// BacklinksResponse wraps the notes linking to a periodic note.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// ParaListResponse wraps the items of a PARA category.
type ParaListResponse struct {
	Items []models.ParaItem `json:"items" validate:"required"`
}

// ParaItemResponse is a created PARA item.
type ParaItemResponse struct {
	Path string `json:"path" example:"1. Projects/Garden/Garden.md" validate:"required"`
}

// SyncReport is the summary of a daily-record sync pass.
type SyncReport = dailyrecord.Report

// SyncStatus is the daily-record engine status.
type SyncStatus = dailyrecord.Status
