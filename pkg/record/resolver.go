package record

import "strings"

// collectionAliases maps each canonical collection name to the legacy names
// under which the same data may already exist, in lookup order. Tolerates
// buckets created by earlier revisions of the system before naming settled.
var collectionAliases = map[string][]string{
	"animals":         {"animalRegistry", "Animals"},
	"healthrecords":   {"healthRecords", "health_records"},
	"feedingtasks":    {"feedingTasks", "feeding_schedule"},
	"breedingrecords": {"breedingRecords"},
	"inventoryitems":  {"inventory", "inventoryItems"},
	"staffmembers":    {"staff", "staffMembers"},
	"settings":        {"facilitySettings", "configuration"},
}

// ResolveCollection maps a canonical resource name to the physical collection
// to use, given the collection names that currently exist in storage.
// Comparison is case-insensitive; an existing bucket under the canonical name
// wins, then each alias in declared order, and finally the canonical name
// itself so the store can create it lazily on first write. Resolution never
// fails.
func ResolveCollection(existing []string, canonical string) string {
	available := make(map[string]string, len(existing))
	for _, name := range existing {
		available[strings.ToLower(name)] = name
	}
	if name, ok := available[strings.ToLower(canonical)]; ok {
		return name
	}
	for _, alias := range collectionAliases[canonical] {
		if name, ok := available[strings.ToLower(alias)]; ok {
			return name
		}
	}
	return canonical
}
