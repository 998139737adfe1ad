package ticketing

import (
	"errors"
	"fmt"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/recurrence"
)

// Fixed classification of generated tickets.
const (
	MaintenanceCategory    = "Facility Management"
	MaintenanceSubcategory = "Preventive Maintenance"
	RenewalCategory        = "Asset Management"
	RenewalSubcategory     = "Contract Renewal"
	DefaultPriority        = "MEDIUM"
	VendorPlaceholder      = "To be assigned"
)

// Form field keys shared with the dedup index.
const (
	FieldAssetID          = "assetId"
	FieldAssetName        = "assetName"
	FieldDueDate          = "dueDate"
	FieldMaintenanceName  = "maintenanceName"
	FieldScheduleID       = "scheduleId"
	FieldCoverageID       = "coverageId"
	FieldAssetCategory    = "assetCategory"
	FieldAssetSubcategory = "assetSubcategory"
	FieldMaintenanceOwner = "maintenanceOwner"
	FieldVendor           = "vendor"
)

var errMissingAsset = errors.New("due item has no asset snapshot")

// Envelope carries the tenant constants stamped on every ticket.
type Envelope struct {
	TenantID string
	OrgID    string
	Channel  string
}

// PayloadBuilder maps due items onto creation payloads. It holds no mutable state.
type PayloadBuilder struct {
	env Envelope
}

// NewPayloadBuilder returns a builder for the given tenant envelope.
func NewPayloadBuilder(env Envelope) PayloadBuilder {
	return PayloadBuilder{env: env}
}

// Build dispatches on the item's family.
func (b PayloadBuilder) Build(item domain.DueItem, actor domain.Actor) (TicketPayload, error) {
	switch item.Family {
	case domain.FamilyMaintenance:
		return b.Maintenance(item, actor)
	case domain.FamilyRenewal:
		return b.Renewal(item, actor)
	default:
		return TicketPayload{}, fmt.Errorf("unknown ticket family %q", item.Family)
	}
}

// Maintenance builds a preventive maintenance ticket.
func (b PayloadBuilder) Maintenance(item domain.DueItem, actor domain.Actor) (TicketPayload, error) {
	if item.Asset == nil {
		return TicketPayload{}, errMissingAsset
	}
	if item.Schedule == nil {
		return TicketPayload{}, errors.New("maintenance due item has no schedule")
	}
	asset, schedule := item.Asset, item.Schedule
	due := recurrence.FormatDate(item.DueDate)

	p := b.envelope(asset, actor)
	p.Subject = fmt.Sprintf("For %s, %s to be done", asset.Name, schedule.MaintenanceName)
	p.Description = fmt.Sprintf("%s for %s is due on %s.", schedule.MaintenanceName, asset.Name, due)
	p.CategoryID = MaintenanceCategory
	p.SubcategoryID = MaintenanceSubcategory
	p.TicketType = ExternalTypeMaintenance
	p.FormFields = map[string]string{
		FieldMaintenanceName:  schedule.MaintenanceName,
		FieldAssetID:          asset.ID,
		FieldScheduleID:       schedule.ID,
		FieldDueDate:          due,
		FieldAssetCategory:    asset.Category,
		FieldAssetSubcategory: asset.Subcategory,
		FieldMaintenanceOwner: schedule.Owner,
		FieldVendor:           VendorPlaceholder,
	}
	return p, nil
}

// Renewal builds a coverage renewal ticket. Its description is always empty.
func (b PayloadBuilder) Renewal(item domain.DueItem, actor domain.Actor) (TicketPayload, error) {
	if item.Asset == nil {
		return TicketPayload{}, errMissingAsset
	}
	asset := item.Asset
	coverageID := item.SourceID
	if item.Coverage != nil {
		coverageID = item.Coverage.ID
	}

	p := b.envelope(asset, actor)
	p.Subject = fmt.Sprintf("%s requires renewal.", asset.Name)
	p.Description = ""
	p.CategoryID = RenewalCategory
	p.SubcategoryID = RenewalSubcategory
	p.TicketType = ExternalTypeRenewal
	p.FormFields = map[string]string{
		FieldAssetID:          asset.ID,
		FieldAssetName:        asset.Name,
		FieldDueDate:          recurrence.FormatDate(item.DueDate),
		FieldAssetCategory:    asset.Category,
		FieldAssetSubcategory: asset.Subcategory,
		FieldCoverageID:       coverageID,
	}
	return p, nil
}

func (b PayloadBuilder) envelope(asset *domain.Asset, actor domain.Actor) TicketPayload {
	return TicketPayload{
		Priority:     DefaultPriority,
		LocationCode: asset.LocationCode,
		Floor:        asset.Floor,
		RequestedBy: Requester{
			UserID: actor.ID,
			Name:   actor.Name,
			Email:  actor.Email,
		},
		TenantID: b.env.TenantID,
		OrgID:    b.env.OrgID,
		Channel:  b.env.Channel,
	}
}
