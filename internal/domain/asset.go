package domain

import "time"

// Asset is a read-only snapshot of a facility asset joined onto schedules and coverages.
type Asset struct {
	ID           string
	Name         string
	LocationCode string
	Floor        string
	Category     string
	Subcategory  string
}

// FrequencyUnit enumerates recurrence units for maintenance schedules.
type FrequencyUnit string

const (
	FrequencyDaily     FrequencyUnit = "daily"
	FrequencyWeekly    FrequencyUnit = "weekly"
	FrequencyMonthly   FrequencyUnit = "monthly"
	FrequencyQuarterly FrequencyUnit = "quarterly"
	FrequencyYearly    FrequencyUnit = "yearly"
)

// MaintenanceSchedule describes a recurring preventive maintenance plan for an asset.
type MaintenanceSchedule struct {
	ID              string
	AssetRef        string
	MaintenanceName string
	StartDate       time.Time
	FrequencyUnit   FrequencyUnit
	FrequencyValue  int
	Owner           string
	IsActive        bool
	Asset           *Asset
}

// CoverageTypeRenewalContract is the only coverage type that produces renewal tickets.
const CoverageTypeRenewalContract = "renewal contract"

// CoverageRecord is a warranty or contract attached to an asset.
type CoverageRecord struct {
	ID           string
	AssetRef     string
	CoverageType string
	EndDate      time.Time
	IsActive     bool
	Asset        *Asset
}
