package extract

import (
	"testing"
	"time"
)

func TestParseNotes(t *testing.T) {
	// The title column is deliberately ZTITLE2-only so extraction has to
	// probe for the variant actually present.
	path := newSourceDB(t, "notes.sqlite",
		`CREATE TABLE ZACCOUNT (Z_PK INTEGER PRIMARY KEY, ZNAME TEXT)`,
		`INSERT INTO ZACCOUNT VALUES (1, 'iCloud')`,
		`CREATE TABLE ZFOLDER (Z_PK INTEGER PRIMARY KEY, ZNAME TEXT, ZACCOUNT INTEGER)`,
		`INSERT INTO ZFOLDER VALUES (1, 'Recipes', 1)`,
		`CREATE TABLE ZNOTE (
			Z_PK INTEGER PRIMARY KEY,
			ZIDENTIFIER TEXT,
			ZTITLE2 TEXT,
			ZBODY BLOB,
			ZFOLDER INTEGER,
			ZACCOUNT INTEGER,
			ZCREATIONDATE REAL,
			ZMODIFICATIONDATE REAL
		)`,
		`INSERT INTO ZNOTE VALUES
			(1, 'note-uuid-1', 'Pasta', 'boil water', 1, 1, 86400, 172800),
			(2, NULL, NULL, X'FFFE', NULL, 1, NULL, NULL)`)

	notes, err := ParseNotes(path)
	if err != nil {
		t.Fatalf("ParseNotes() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2", len(notes))
	}

	t.Run("full note", func(t *testing.T) {
		n := notes[0]
		if n.Identifier != "note-uuid-1" {
			t.Errorf("Identifier = %q, want %q", n.Identifier, "note-uuid-1")
		}
		if n.Title != "Pasta" || n.Body != "boil water" {
			t.Errorf("note = %q/%q, want Pasta/boil water", n.Title, n.Body)
		}
		if n.Folder != "iCloud / Recipes" {
			t.Errorf("Folder = %q, want account-qualified %q", n.Folder, "iCloud / Recipes")
		}
		created := time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC)
		if n.CreatedAt == nil || !n.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, created)
		}
	})

	t.Run("sparse note degrades", func(t *testing.T) {
		n := notes[1]
		if n.Identifier != "note-2" {
			t.Errorf("Identifier = %q, want primary-key fallback %q", n.Identifier, "note-2")
		}
		if n.Body != "" {
			t.Errorf("Body = %q, want empty for a non-text blob", n.Body)
		}
		if n.Folder != "iCloud" {
			t.Errorf("Folder = %q, want account fallback %q", n.Folder, "iCloud")
		}
		if n.CreatedAt != nil {
			t.Errorf("CreatedAt = %v, want nil", n.CreatedAt)
		}
	})
}
