package abx

import "strings"

// SearchItem is the searchable projection of one extracted record.
// Ref is the record's natural identifier; Text holds the human-meaningful
// textual attributes that go into the free-text blob.
type SearchItem struct {
	Ref     string
	Display string
	Text    []string
}

// BuildSearchEntries emits zero or one search row per item. Items with an
// empty Ref are skipped: a record without a usable natural identifier has
// nothing for a search hit to point back at. Empty text parts are dropped
// before joining.
func BuildSearchEntries(idgen IDGenerator, backupID string, artifactType string, items []SearchItem) []*SearchEntry {
	entries := make([]*SearchEntry, 0, len(items))
	for _, item := range items {
		if item.Ref == "" {
			continue
		}
		parts := make([]string, 0, len(item.Text))
		for _, part := range item.Text {
			if part != "" {
				parts = append(parts, part)
			}
		}
		entries = append(entries, &SearchEntry{
			ID:           idgen.New(),
			BackupID:     backupID,
			ArtifactType: artifactType,
			ArtifactRef:  item.Ref,
			DisplayText:  item.Display,
			SearchText:   strings.Join(parts, " "),
		})
	}
	return entries
}
