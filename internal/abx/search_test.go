package abx

import (
	"fmt"
	"testing"
)

type seqGen struct{ n int }

func (g *seqGen) New() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func TestBuildSearchEntries(t *testing.T) {
	items := []SearchItem{
		{Ref: "note-1", Display: "Pasta", Text: []string{"Pasta", "", "boil water"}},
		{Ref: "", Display: "lost", Text: []string{"never indexed"}},
		{Ref: "note-2", Display: "", Text: nil},
	}

	entries := BuildSearchEntries(&seqGen{}, "backup-1", "note", items)

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (empty ref skipped)", len(entries))
	}

	first := entries[0]
	if first.ID != "id-1" || first.BackupID != "backup-1" || first.ArtifactType != "note" {
		t.Errorf("entry = %+v, want generated ID and backup/type set", first)
	}
	if first.ArtifactRef != "note-1" || first.DisplayText != "Pasta" {
		t.Errorf("entry ref/display = %q/%q, want note-1/Pasta", first.ArtifactRef, first.DisplayText)
	}
	if first.SearchText != "Pasta boil water" {
		t.Errorf("SearchText = %q, want empty parts dropped before joining", first.SearchText)
	}

	if entries[1].ArtifactRef != "note-2" || entries[1].SearchText != "" {
		t.Errorf("entries[1] = %+v, want note-2 with empty search text", entries[1])
	}
}
