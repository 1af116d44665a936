package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"abx-go/internal/abx"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (g *seqIDs) New() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// newTestStore opens a migrated in-memory store. testutil provides the
// same helper for other packages; this package cannot import it back.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:",
		fixedClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}, &seqIDs{})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_BackupLifecycle(t *testing.T) {
	store := newTestStore(t)

	backup, err := store.CreateBackup("device-1")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	if backup.Status != abx.StatusPending {
		t.Errorf("Status = %q, want %q", backup.Status, abx.StatusPending)
	}

	t.Run("find by identifier", func(t *testing.T) {
		found, err := store.FindBackupByIdentifier("device-1")
		if err != nil {
			t.Fatalf("FindBackupByIdentifier() error = %v", err)
		}
		if found == nil {
			t.Fatal("FindBackupByIdentifier() = nil, want backup")
		}
		if found.ID != backup.ID {
			t.Errorf("ID = %q, want %q", found.ID, backup.ID)
		}
		if found.LastIndexedAt != nil {
			t.Errorf("LastIndexedAt = %v, want nil", found.LastIndexedAt)
		}
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		found, err := store.FindBackupByIdentifier("no-such-device")
		if err != nil {
			t.Fatalf("FindBackupByIdentifier() error = %v", err)
		}
		if found != nil {
			t.Errorf("FindBackupByIdentifier() = %+v, want nil", found)
		}
	})

	t.Run("list", func(t *testing.T) {
		if _, err := store.CreateBackup("device-2"); err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		backups, err := store.ListBackups()
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(backups) != 2 {
			t.Fatalf("len(backups) = %d, want 2", len(backups))
		}
	})
}

func TestSQLiteStore_RunState(t *testing.T) {
	store := newTestStore(t)

	backup, err := store.CreateBackup("device-1")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	if err := store.BeginIndexing(backup.ID); err != nil {
		t.Fatalf("BeginIndexing() error = %v", err)
	}
	if err := store.SetCurrentArtifact(backup.ID, abx.KindPhotos); err != nil {
		t.Fatalf("SetCurrentArtifact() error = %v", err)
	}
	if err := store.AddProgressTotal(backup.ID, 10); err != nil {
		t.Fatalf("AddProgressTotal() error = %v", err)
	}
	if err := store.AdvanceProgress(backup.ID, 4); err != nil {
		t.Fatalf("AdvanceProgress() error = %v", err)
	}

	got, err := store.FindBackupByIdentifier("device-1")
	if err != nil {
		t.Fatalf("FindBackupByIdentifier() error = %v", err)
	}
	if got.Status != abx.StatusIndexing {
		t.Errorf("Status = %q, want %q", got.Status, abx.StatusIndexing)
	}
	if got.CurrentArtifact != string(abx.KindPhotos) {
		t.Errorf("CurrentArtifact = %q, want %q", got.CurrentArtifact, abx.KindPhotos)
	}
	if got.Progress != 4 || got.ProgressTotal != 10 {
		t.Errorf("progress = %d/%d, want 4/10", got.Progress, got.ProgressTotal)
	}

	t.Run("finish", func(t *testing.T) {
		at := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
		if err := store.FinishIndexing(backup.ID, at); err != nil {
			t.Fatalf("FinishIndexing() error = %v", err)
		}

		got, err := store.FindBackupByIdentifier("device-1")
		if err != nil {
			t.Fatalf("FindBackupByIdentifier() error = %v", err)
		}
		if got.Status != abx.StatusIndexed {
			t.Errorf("Status = %q, want %q", got.Status, abx.StatusIndexed)
		}
		if got.Progress != got.ProgressTotal {
			t.Errorf("Progress = %d, want %d (equal to total)", got.Progress, got.ProgressTotal)
		}
		if got.CurrentArtifact != "" {
			t.Errorf("CurrentArtifact = %q, want empty", got.CurrentArtifact)
		}
		if got.LastIndexedAt == nil || !got.LastIndexedAt.Equal(at) {
			t.Errorf("LastIndexedAt = %v, want %v", got.LastIndexedAt, at)
		}
	})

	t.Run("fail", func(t *testing.T) {
		if err := store.FailIndexing(backup.ID, "ingesting photos: disk error"); err != nil {
			t.Fatalf("FailIndexing() error = %v", err)
		}

		got, err := store.FindBackupByIdentifier("device-1")
		if err != nil {
			t.Fatalf("FindBackupByIdentifier() error = %v", err)
		}
		if got.Status != abx.StatusFailed {
			t.Errorf("Status = %q, want %q", got.Status, abx.StatusFailed)
		}
		if got.LastError != "ingesting photos: disk error" {
			t.Errorf("LastError = %q, want the failure message", got.LastError)
		}
		if got.CurrentArtifact != "" {
			t.Errorf("CurrentArtifact = %q, want empty", got.CurrentArtifact)
		}
	})

	t.Run("unknown backup id", func(t *testing.T) {
		err := store.BeginIndexing("no-such-id")
		if !errors.Is(err, abx.ErrUnknownBackup) {
			t.Errorf("BeginIndexing() error = %v, want ErrUnknownBackup", err)
		}
	})
}

func TestSQLiteStore_InsertAndList(t *testing.T) {
	store := newTestStore(t)

	backup, err := store.CreateBackup("device-1")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	early := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)

	chats := []*abx.WhatsAppChat{
		{ID: "chat-1", BackupID: backup.ID, ChatGUID: "111@s.whatsapp.net", Title: "Alice", LastMessageAt: &early},
		{ID: "chat-2", BackupID: backup.ID, ChatGUID: "222@g.us", Title: "Group", ParticipantCount: 3, LastMessageAt: &late},
	}
	if err := store.InsertWhatsAppChats(chats); err != nil {
		t.Fatalf("InsertWhatsAppChats() error = %v", err)
	}

	messages := []*abx.WhatsAppMessage{
		{ID: "msg-2", BackupID: backup.ID, ChatID: "chat-1", MessageID: "m2", Sender: "111@s.whatsapp.net", SentAt: &late, Body: "second"},
		{ID: "msg-1", BackupID: backup.ID, ChatID: "chat-1", MessageID: "m1", SentAt: &early, Body: "first", IsFromMe: true},
	}
	if err := store.InsertWhatsAppMessages(messages); err != nil {
		t.Fatalf("InsertWhatsAppMessages() error = %v", err)
	}

	t.Run("chats ordered by last activity", func(t *testing.T) {
		got, err := store.ListWhatsAppChats(backup.ID)
		if err != nil {
			t.Fatalf("ListWhatsAppChats() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(chats) = %d, want 2", len(got))
		}
		if got[0].ID != "chat-2" {
			t.Errorf("first chat = %s, want chat-2 (most recent activity)", got[0].ID)
		}
	})

	t.Run("messages in sent order", func(t *testing.T) {
		got, err := store.ListWhatsAppMessages("chat-1")
		if err != nil {
			t.Fatalf("ListWhatsAppMessages() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(messages) = %d, want 2", len(got))
		}
		if got[0].ID != "msg-1" || got[1].ID != "msg-2" {
			t.Errorf("order = [%s %s], want [msg-1 msg-2]", got[0].ID, got[1].ID)
		}
		if !got[0].IsFromMe {
			t.Error("msg-1 IsFromMe = false, want true")
		}
	})

	t.Run("contact multi-values round-trip", func(t *testing.T) {
		contacts := []*abx.Contact{
			{
				ID: "contact-row-1", BackupID: backup.ID, ContactIdentifier: "contact-1",
				FirstName: "Ada", LastName: "Lovelace",
				Emails: []string{"ada@example.com", "al@example.org"},
				Phones: []string{"+15551234"},
			},
			{
				ID: "contact-row-2", BackupID: backup.ID, ContactIdentifier: "contact-2",
				Company: "Acme",
			},
		}
		if err := store.InsertContacts(contacts); err != nil {
			t.Fatalf("InsertContacts() error = %v", err)
		}

		got, err := store.ListContacts(backup.ID)
		if err != nil {
			t.Fatalf("ListContacts() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(contacts) = %d, want 2", len(got))
		}
		// "" sorts before "Lovelace"
		if got[1].ContactIdentifier != "contact-1" {
			t.Fatalf("second contact = %s, want contact-1", got[1].ContactIdentifier)
		}
		if len(got[1].Emails) != 2 || got[1].Emails[0] != "ada@example.com" {
			t.Errorf("Emails = %v, want both addresses back", got[1].Emails)
		}
		if len(got[1].Phones) != 1 || got[1].Phones[0] != "+15551234" {
			t.Errorf("Phones = %v, want [+15551234]", got[1].Phones)
		}
		if got[0].Emails != nil {
			t.Errorf("empty Emails = %v, want nil", got[0].Emails)
		}
	})
}

func TestSQLiteStore_TruncateArtifacts(t *testing.T) {
	store := newTestStore(t)

	backup, err := store.CreateBackup("device-1")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	other, err := store.CreateBackup("device-2")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	populate := func(b *abx.Backup, prefix string) {
		t.Helper()
		mustInsert := func(name string, err error) {
			t.Helper()
			if err != nil {
				t.Fatalf("%s error = %v", name, err)
			}
		}
		mustInsert("InsertWhatsAppChats",
			store.InsertWhatsAppChats([]*abx.WhatsAppChat{{ID: prefix + "-wc", BackupID: b.ID, ChatGUID: "1@g.us"}}))
		mustInsert("InsertWhatsAppMessages",
			store.InsertWhatsAppMessages([]*abx.WhatsAppMessage{{ID: prefix + "-wm", BackupID: b.ID, ChatID: prefix + "-wc", MessageID: "m1"}}))
		mustInsert("InsertWhatsAppAttachments",
			store.InsertWhatsAppAttachments([]*abx.WhatsAppAttachment{{ID: prefix + "-wa", MessageID: prefix + "-wm"}}))
		mustInsert("InsertConversations",
			store.InsertConversations([]*abx.Conversation{{ID: prefix + "-cv", BackupID: b.ID, GUID: "g1"}}))
		mustInsert("InsertMessages",
			store.InsertMessages([]*abx.Message{{ID: prefix + "-ms", BackupID: b.ID, ConversationID: prefix + "-cv", MessageGUID: "mg1"}}))
		mustInsert("InsertMessageAttachments",
			store.InsertMessageAttachments([]*abx.MessageAttachment{{ID: prefix + "-ma", MessageID: prefix + "-ms"}}))
		mustInsert("InsertNotes",
			store.InsertNotes([]*abx.Note{{ID: prefix + "-nt", BackupID: b.ID, NoteIdentifier: "n1"}}))
		mustInsert("InsertCalendars",
			store.InsertCalendars([]*abx.Calendar{{ID: prefix + "-cl", BackupID: b.ID, CalendarIdentifier: "c1"}}))
		mustInsert("InsertCalendarEvents",
			store.InsertCalendarEvents([]*abx.CalendarEvent{{ID: prefix + "-ce", BackupID: b.ID, CalendarID: prefix + "-cl", EventIdentifier: "e1"}}))
		mustInsert("InsertContacts",
			store.InsertContacts([]*abx.Contact{{ID: prefix + "-ct", BackupID: b.ID, ContactIdentifier: "p1"}}))
		mustInsert("InsertPhotoAssets",
			store.InsertPhotoAssets([]*abx.PhotoAsset{{ID: prefix + "-ph", BackupID: b.ID, AssetID: "a1"}}))
		mustInsert("InsertSearchEntries",
			store.InsertSearchEntries([]*abx.SearchEntry{{ID: prefix + "-se", BackupID: b.ID, ArtifactType: "note", ArtifactRef: "n1"}}))
	}

	populate(backup, "b1")
	populate(other, "b2")

	if err := store.TruncateArtifacts(backup.ID); err != nil {
		t.Fatalf("TruncateArtifacts() error = %v", err)
	}

	counts, err := store.ArtifactCounts(backup.ID)
	if err != nil {
		t.Fatalf("ArtifactCounts() error = %v", err)
	}
	for table, count := range counts {
		if count != 0 {
			t.Errorf("count[%s] = %d after truncate, want 0", table, count)
		}
	}

	otherCounts, err := store.ArtifactCounts(other.ID)
	if err != nil {
		t.Fatalf("ArtifactCounts() error = %v", err)
	}
	for table, count := range otherCounts {
		if count != 1 {
			t.Errorf("other backup count[%s] = %d, want 1 (must be untouched)", table, count)
		}
	}
}
