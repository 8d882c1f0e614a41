// Package model defines the canonical record types shared across the pipeline.
package model

import "time"

// ProjectType is the closed set of facility classifications.
type ProjectType string

const (
	TypeDatacenter    ProjectType = "datacenter"
	TypeSolar         ProjectType = "solar"
	TypeWind          ProjectType = "wind"
	TypeStorage       ProjectType = "storage"
	TypeManufacturing ProjectType = "manufacturing"
	TypeOther         ProjectType = "other"
)

// Project is the persisted canonical record for one interconnection-queue entry.
// String fields are independently optional; absent values are empty strings.
type Project struct {
	ExternalID      string      `json:"external_id"`
	ProjectName     string      `json:"project_name"`
	Customer        string      `json:"customer"`
	Utility         string      `json:"utility"`
	County          string      `json:"county"`
	State           string      `json:"state"`
	FuelType        string      `json:"fuel_type"`
	Status          string      `json:"status"`
	CapacityMW      float64     `json:"capacity_mw"`
	ContentHash     string      `json:"content_hash"`
	ConfidenceScore int         `json:"confidence_score"`
	ConfidenceNotes []string    `json:"confidence_notes"`
	ProjectType     ProjectType `json:"project_type"`
	Source          string      `json:"source"`
	SourceURL       string      `json:"source_url"`
	CreatedAt       time.Time   `json:"created_at"`
	LastSeen        time.Time   `json:"last_seen"`
	IsArchived      bool        `json:"is_archived"`
}

// Location renders the county/state pair the way it is fingerprinted and exported.
func (p *Project) Location() string {
	switch {
	case p.County != "" && p.State != "":
		return p.County + ", " + p.State
	case p.County != "":
		return p.County
	default:
		return p.State
	}
}
