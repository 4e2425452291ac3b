package resource

import (
	"time"

	"github.com/five82/solarops/internal/listquery"
)

// LogEntry is one line of an entity's activity log.
type LogEntry struct {
	Message   string `json:"message"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Lead is a prospective customer in the sales pipeline.
type Lead struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	Source       string     `json:"source,omitempty"`
	Status       string     `json:"status,omitempty"`
	AssignedTo   string     `json:"assignedTo,omitempty"`
	SystemSizeKW float64    `json:"systemSizeKw,omitempty"`
	Value        float64    `json:"value,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Logs         []LogEntry `json:"logs,omitempty"`
	CreatedAt    string     `json:"createdAt,omitempty"`
	UpdatedAt    string     `json:"updatedAt,omitempty"`
}

// Created returns CreatedAt as a time, or the zero time.
func (l Lead) Created() time.Time { return parsed(l.CreatedAt) }

// Install is a scheduled or completed panel installation.
type Install struct {
	ID           string     `json:"id,omitempty"`
	CustomerID   string     `json:"customerId,omitempty"`
	LeadID       string     `json:"leadId,omitempty"`
	Address      string     `json:"address,omitempty"`
	Status       string     `json:"status,omitempty"`
	InstallerID  string     `json:"installerId,omitempty"`
	ScheduledFor string     `json:"scheduledFor,omitempty"`
	SystemSizeKW float64    `json:"systemSizeKw,omitempty"`
	Panels       int        `json:"panels,omitempty"`
	Inverter     string     `json:"inverter,omitempty"`
	Logs         []LogEntry `json:"logs,omitempty"`
	CreatedAt    string     `json:"createdAt,omitempty"`
}

// Scheduled returns ScheduledFor as a time, or the zero time.
func (i Install) Scheduled() time.Time { return parsed(i.ScheduledFor) }

// Customer is a converted lead.
type Customer struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	LeadID    string     `json:"leadId,omitempty"`
	Status    string     `json:"status,omitempty"`
	Logs      []LogEntry `json:"logs,omitempty"`
	CreatedAt string     `json:"createdAt,omitempty"`
}

// Service is an after-sales maintenance or repair job.
type Service struct {
	ID           string `json:"id,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	InstallID    string `json:"installId,omitempty"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Description  string `json:"description,omitempty"`
	ScheduledFor string `json:"scheduledFor,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// StockItem is one inventory line.
type StockItem struct {
	ID           string  `json:"id,omitempty"`
	SKU          string  `json:"sku,omitempty"`
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	Quantity     int     `json:"quantity"`
	ReorderLevel int     `json:"reorderLevel,omitempty"`
	UnitCost     float64 `json:"unitCost,omitempty"`
	Location     string  `json:"location,omitempty"`
	Status       string  `json:"status,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// LowStock reports whether the item is at or below its reorder level.
func (s StockItem) LowStock() bool {
	return s.ReorderLevel > 0 && s.Quantity <= s.ReorderLevel
}

// File is metadata for an uploaded document such as a quote or permit.
type File struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	OwnerType   string `json:"ownerType,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Notification is a message addressed to the signed-in user.
type Notification struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Message   string `json:"message,omitempty"`
	Type      string `json:"type,omitempty"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Installer is a crew member who can be booked on installs.
type Installer struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Phone  string   `json:"phone,omitempty"`
	Crew   string   `json:"crew,omitempty"`
	Status string   `json:"status,omitempty"`
	Skills []string `json:"skills,omitempty"`
}

// Event is a calendar entry.
type Event struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Type        string `json:"type,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	InstallID   string `json:"installId,omitempty"`
	InstallerID string `json:"installerId,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Starts returns Start as a time, or the zero time.
func (e Event) Starts() time.Time { return parsed(e.Start) }

func parsed(value string) time.Time {
	t, _ := listquery.ParseTime(value)
	return t
}

// Schemas for each collection. Free-text search covers the fields an operator
// would type into the search box.
var (
	LeadSchema = listquery.Schema{
		SearchFields: []string{"name", "email", "phone", "address", "source"},
		Types: map[string]listquery.FieldType{
			"systemSizeKw": listquery.TypeNumber,
			"value":        listquery.TypeNumber,
			"createdAt":    listquery.TypeDate,
			"updatedAt":    listquery.TypeDate,
		},
	}
	InstallSchema = listquery.Schema{
		SearchFields: []string{"address", "inverter", "customerId"},
		Types: map[string]listquery.FieldType{
			"systemSizeKw": listquery.TypeNumber,
			"panels":       listquery.TypeNumber,
			"scheduledFor": listquery.TypeDate,
			"createdAt":    listquery.TypeDate,
		},
	}
	CustomerSchema = listquery.Schema{
		SearchFields: []string{"name", "email", "phone", "address"},
		Types: map[string]listquery.FieldType{
			"createdAt": listquery.TypeDate,
		},
	}
	ServiceSchema = listquery.Schema{
		SearchFields: []string{"type", "description", "priority"},
		Types: map[string]listquery.FieldType{
			"scheduledFor": listquery.TypeDate,
			"createdAt":    listquery.TypeDate,
		},
	}
	StockSchema = listquery.Schema{
		SearchFields: []string{"sku", "name", "category", "location"},
		Types: map[string]listquery.FieldType{
			"quantity":     listquery.TypeNumber,
			"reorderLevel": listquery.TypeNumber,
			"unitCost":     listquery.TypeNumber,
			"updatedAt":    listquery.TypeDate,
		},
	}
	FileSchema = listquery.Schema{
		SearchFields: []string{"name", "ownerType", "contentType"},
		StatusField:  "ownerType",
		Types: map[string]listquery.FieldType{
			"size":      listquery.TypeNumber,
			"createdAt": listquery.TypeDate,
		},
	}
	NotificationSchema = listquery.Schema{
		SearchFields: []string{"title", "message"},
		StatusField:  "type",
		Types: map[string]listquery.FieldType{
			"createdAt": listquery.TypeDate,
		},
	}
	InstallerSchema = listquery.Schema{
		SearchFields: []string{"name", "email", "crew"},
	}
	EventSchema = listquery.Schema{
		SearchFields: []string{"title", "location", "type"},
		Types: map[string]listquery.FieldType{
			"start": listquery.TypeDate,
			"end":   listquery.TypeDate,
		},
	}
)
