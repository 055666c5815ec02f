package core

import "farmcore/pkg/record"

// Resource describes one record type: the canonical collection it lives in,
// how its identifiers are allocated, which fields a create must carry, and
// whether stock status is derived on write.
type Resource struct {
	// Name is the canonical collection name.
	Name string
	// Path is the resource segment in API URLs, e.g. "health-records".
	Path string
	// Label names the resource in client-facing error messages.
	Label string
	// Prefix and Width shape allocated identifiers, e.g. "A" + 3 -> A001.
	// All ids under one prefix must share the width; allocation relies on it.
	Prefix string
	Width  int
	// Required lists the fields a create payload must carry.
	Required []string
	// DerivedStatus recomputes the stock status on every write.
	DerivedStatus bool
}

// Resources is the full set of record types the service manages, settings
// excluded (the settings singleton has its own operations).
var Resources = []Resource{
	{
		Name:     "animals",
		Path:     "animals",
		Label:    "Animal",
		Prefix:   "A",
		Width:    record.DefaultIDWidth,
		Required: []string{"name", "species", "breed", "age", "gender", "status"},
	},
	{
		Name:     "healthrecords",
		Path:     "health-records",
		Label:    "Health record",
		Prefix:   "H",
		Width:    record.DefaultIDWidth,
		Required: []string{"animalId", "recordType", "description", "date", "veterinarian", "status"},
	},
	{
		Name:     "feedingtasks",
		Path:     "feeding-tasks",
		Label:    "Feeding task",
		Prefix:   "F",
		Width:    record.DefaultIDWidth,
		Required: []string{"animalId", "animalName", "foodType", "quantity", "time", "frequency", "status", "startDate"},
	},
	{
		Name:     "breedingrecords",
		Path:     "breeding-records",
		Label:    "Breeding record",
		Prefix:   "B",
		Width:    record.DefaultIDWidth,
		Required: []string{"femaleId", "maleId", "breedingDate", "expectedDueDate", "status"},
	},
	{
		Name:          "inventoryitems",
		Path:          "inventory",
		Label:         "Inventory item",
		Prefix:        "I",
		Width:         record.DefaultIDWidth,
		Required:      []string{"name", "category", "quantity", "unit", "reorderLevel", "costPerUnit"},
		DerivedStatus: true,
	},
	{
		Name:     "staffmembers",
		Path:     "staff",
		Label:    "Staff member",
		Prefix:   "S",
		Width:    record.DefaultIDWidth,
		Required: []string{"name", "role", "email", "phone", "status", "joined"},
	},
}

// ResourceByName returns the descriptor for a canonical resource name.
func ResourceByName(name string) (Resource, bool) {
	for _, r := range Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// ResourceByPath returns the descriptor for an API path segment.
func ResourceByPath(path string) (Resource, bool) {
	for _, r := range Resources {
		if r.Path == path {
			return r, true
		}
	}
	return Resource{}, false
}

// SettingsCollection is the canonical name of the settings singleton.
const SettingsCollection = "settings"

// DefaultSettings returns the facility settings document installed on first
// read.
func DefaultSettings() record.Record {
	return record.Record{
		"facilityName":       "Green Valley Animal Care Center",
		"registrationNumber": "FAC-2023-001",
		"address":            "123 Animal Care Lane, Green Valley, CA 90210",
		"phone":              "(555) 123-4567",
		"email":              "contact@greenvalley.com",
		"operatingHours":     "Monday - Saturday: 8:00 AM - 6:00 PM",
		"notificationPreferences": record.Record{
			"lowStockAlerts":   true,
			"healthReminders":  true,
			"breedingAlerts":   true,
			"feedingReminders": true,
			"emailSummary":     false,
		},
		"lastBackup": record.NowISO(),
	}
}
