package abx

import (
	"errors"
	"time"
)

// ErrUnknownBackup is returned by Indexer.Run when the backup identifier
// has not been registered.
var ErrUnknownBackup = errors.New("unknown backup")

// Store provides transactional persistence for backups and their artifact
// rows. Each batched insert call is one transaction; the Indexer relies on
// that as its commit boundary.
type Store interface {
	// Backup aggregate operations

	// CreateBackup registers a backup by its device identifier.
	CreateBackup(identifier string) (*Backup, error)

	// FindBackupByIdentifier returns the backup with the given device
	// identifier, or nil if none exists.
	FindBackupByIdentifier(identifier string) (*Backup, error)

	// ListBackups returns all registered backups, newest first.
	ListBackups() ([]*Backup, error)

	// Run state and progress. These write through immediately so the
	// progress triple reflects real-time state to polling readers.

	// BeginIndexing marks the backup as indexing and zeroes the progress
	// triple and last error.
	BeginIndexing(backupID string) error

	// SetCurrentArtifact records which artifact kind is being ingested.
	SetCurrentArtifact(backupID string, kind Kind) error

	// AddProgressTotal grows the expected unit count for the run.
	AddProgressTotal(backupID string, delta int64) error

	// AdvanceProgress grows the processed unit count for the run.
	AdvanceProgress(backupID string, delta int64) error

	// FinishIndexing marks the run complete: status indexed, progress
	// count set equal to total, current artifact cleared.
	FinishIndexing(backupID string, at time.Time) error

	// FailIndexing marks the run failed and records the error message.
	FailIndexing(backupID string, message string) error

	// TruncateArtifacts deletes every artifact row owned by the backup,
	// child tables without a direct backup reference first.
	TruncateArtifacts(backupID string) error

	// Batched inserts. Row IDs are assigned by the caller.

	InsertPhotoAssets(assets []*PhotoAsset) error
	InsertWhatsAppChats(chats []*WhatsAppChat) error
	InsertWhatsAppMessages(messages []*WhatsAppMessage) error
	InsertWhatsAppAttachments(attachments []*WhatsAppAttachment) error
	InsertConversations(conversations []*Conversation) error
	InsertMessages(messages []*Message) error
	InsertMessageAttachments(attachments []*MessageAttachment) error
	InsertNotes(notes []*Note) error
	InsertCalendars(calendars []*Calendar) error
	InsertCalendarEvents(events []*CalendarEvent) error
	InsertContacts(contacts []*Contact) error
	InsertSearchEntries(entries []*SearchEntry) error

	// Read API for the status surface and the external browse layer.

	// ArtifactCounts returns row counts per artifact table for a backup.
	ArtifactCounts(backupID string) (map[string]int64, error)

	// ListWhatsAppChats returns a backup's chats ordered by last activity.
	ListWhatsAppChats(backupID string) ([]*WhatsAppChat, error)

	// ListWhatsAppMessages returns a chat's messages in sent order.
	ListWhatsAppMessages(chatID string) ([]*WhatsAppMessage, error)

	// ListNotes returns a backup's notes.
	ListNotes(backupID string) ([]*Note, error)

	// ListContacts returns a backup's contacts ordered by name.
	ListContacts(backupID string) ([]*Contact, error)

	// ListSearchEntries returns a backup's search rows.
	ListSearchEntries(backupID string) ([]*SearchEntry, error)

	// Schema lifecycle.

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// MigrateUp brings the schema to the latest version.
	MigrateUp() error

	// Close closes the underlying connection.
	Close() error
}
