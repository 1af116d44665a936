package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"abx-go/internal/abx"
	"abx-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// artifactTables are the per-backup artifact tables, in truncation order:
// tables without a direct backup reference are deleted first through their
// owning parents.
var artifactTables = []string{
	"photo_assets",
	"whatsapp_chats",
	"whatsapp_messages",
	"whatsapp_attachments",
	"conversations",
	"messages",
	"message_attachments",
	"notes",
	"calendars",
	"calendar_events",
	"contacts",
	"search_index",
}

// SQLiteStore implements the abx.Store interface using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock abx.Clock
	idgen abx.IDGenerator
	path  string
}

// NewSQLiteStore creates a new SQLite-backed store. path can be a file
// path or ":memory:" for an in-memory database. clock and idgen may be
// nil, in which case real implementations are used.
func NewSQLiteStore(path string, clock abx.Clock, idgen abx.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = abx.RealClock{}
	}
	if idgen == nil {
		idgen = abx.UUIDGenerator{}
	}
	return &SQLiteStore{
		db:    db,
		clock: clock,
		idgen: idgen,
		path:  path,
	}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection; the pool must not
	// hand out a second connection with an empty schema.
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Backup operations

func (s *SQLiteStore) CreateBackup(identifier string) (*abx.Backup, error) {
	backup := &abx.Backup{
		ID:         s.idgen.New(),
		Identifier: identifier,
		Status:     abx.StatusPending,
		CreatedAt:  s.clock.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO backups (id, identifier, status, progress, progress_total, current_artifact, last_error, created_at)
		VALUES (?, ?, ?, 0, 0, '', '', ?)`,
		backup.ID, backup.Identifier, backup.Status, backup.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating backup: %w", err)
	}
	return backup, nil
}

const backupColumns = "id, identifier, status, progress, progress_total, current_artifact, last_error, last_indexed_at, created_at"

func (s *SQLiteStore) FindBackupByIdentifier(identifier string) (*abx.Backup, error) {
	row := s.db.QueryRow(
		"SELECT "+backupColumns+" FROM backups WHERE identifier = ?", identifier)
	backup, err := scanBackup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding backup by identifier: %w", err)
	}
	return backup, nil
}

func (s *SQLiteStore) ListBackups() ([]*abx.Backup, error) {
	rows, err := s.db.Query(
		"SELECT " + backupColumns + " FROM backups ORDER BY created_at DESC, identifier")
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var backups []*abx.Backup
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("listing backups: %w", err)
		}
		backups = append(backups, backup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return backups, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBackup(row scanner) (*abx.Backup, error) {
	var backup abx.Backup
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&backup.ID, &backup.Identifier, &backup.Status,
		&backup.Progress, &backup.ProgressTotal, &backup.CurrentArtifact,
		&backup.LastError, &lastIndexedAt, &backup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	backup.LastIndexedAt = timePtr(lastIndexedAt)
	return &backup, nil
}

// Run state and progress

func (s *SQLiteStore) BeginIndexing(backupID string) error {
	return s.updateBackup("marking backup indexing", `
		UPDATE backups
		SET status = ?, progress = 0, progress_total = 0, current_artifact = '', last_error = ''
		WHERE id = ?`,
		abx.StatusIndexing, backupID)
}

func (s *SQLiteStore) SetCurrentArtifact(backupID string, kind abx.Kind) error {
	return s.updateBackup("setting current artifact",
		"UPDATE backups SET current_artifact = ? WHERE id = ?",
		string(kind), backupID)
}

func (s *SQLiteStore) AddProgressTotal(backupID string, delta int64) error {
	return s.updateBackup("adding progress total",
		"UPDATE backups SET progress_total = progress_total + ? WHERE id = ?",
		delta, backupID)
}

func (s *SQLiteStore) AdvanceProgress(backupID string, delta int64) error {
	return s.updateBackup("advancing progress",
		"UPDATE backups SET progress = progress + ? WHERE id = ?",
		delta, backupID)
}

func (s *SQLiteStore) FinishIndexing(backupID string, at time.Time) error {
	return s.updateBackup("marking backup indexed", `
		UPDATE backups
		SET status = ?, progress = progress_total, current_artifact = '', last_error = '', last_indexed_at = ?
		WHERE id = ?`,
		abx.StatusIndexed, at, backupID)
}

func (s *SQLiteStore) FailIndexing(backupID string, message string) error {
	return s.updateBackup("marking backup failed", `
		UPDATE backups
		SET status = ?, current_artifact = '', last_error = ?
		WHERE id = ?`,
		abx.StatusFailed, message, backupID)
}

func (s *SQLiteStore) updateBackup(op, query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, abx.ErrUnknownBackup)
	}
	return nil
}

// TruncateArtifacts deletes every artifact row owned by the backup in a
// single transaction. Attachment tables carry no backup reference, so
// they are deleted through their owning messages before the messages go.
func (s *SQLiteStore) TruncateArtifacts(backupID string) error {
	statements := []string{
		"DELETE FROM whatsapp_attachments WHERE message_id IN (SELECT id FROM whatsapp_messages WHERE backup_id = ?)",
		"DELETE FROM message_attachments WHERE message_id IN (SELECT id FROM messages WHERE backup_id = ?)",
		"DELETE FROM whatsapp_messages WHERE backup_id = ?",
		"DELETE FROM whatsapp_chats WHERE backup_id = ?",
		"DELETE FROM messages WHERE backup_id = ?",
		"DELETE FROM conversations WHERE backup_id = ?",
		"DELETE FROM calendar_events WHERE backup_id = ?",
		"DELETE FROM calendars WHERE backup_id = ?",
		"DELETE FROM photo_assets WHERE backup_id = ?",
		"DELETE FROM notes WHERE backup_id = ?",
		"DELETE FROM contacts WHERE backup_id = ?",
		"DELETE FROM search_index WHERE backup_id = ?",
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("truncating artifacts: starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range statements {
		if _, err := tx.Exec(statement, backupID); err != nil {
			return fmt.Errorf("truncating artifacts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("truncating artifacts: committing transaction: %w", err)
	}
	return nil
}

// Batched inserts. Each call is one transaction; a failure rolls the
// whole batch back.

func (s *SQLiteStore) InsertPhotoAssets(assets []*abx.PhotoAsset) error {
	return insertBatch(s.db, "inserting photo assets", `
		INSERT INTO photo_assets (id, backup_id, asset_id, original_filename, relative_path, file_id, taken_at, timezone_offset, width, height, media_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assets, func(a *abx.PhotoAsset) []any {
			return []any{a.ID, a.BackupID, a.AssetID, a.OriginalFilename, a.RelativePath, a.FileID,
				nullTime(a.TakenAt), a.TimezoneOffset, a.Width, a.Height, a.MediaType}
		})
}

func (s *SQLiteStore) InsertWhatsAppChats(chats []*abx.WhatsAppChat) error {
	return insertBatch(s.db, "inserting whatsapp chats", `
		INSERT INTO whatsapp_chats (id, backup_id, chat_guid, title, participant_count, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chats, func(c *abx.WhatsAppChat) []any {
			return []any{c.ID, c.BackupID, c.ChatGUID, c.Title, c.ParticipantCount, nullTime(c.LastMessageAt)}
		})
}

func (s *SQLiteStore) InsertWhatsAppMessages(messages []*abx.WhatsAppMessage) error {
	return insertBatch(s.db, "inserting whatsapp messages", `
		INSERT INTO whatsapp_messages (id, backup_id, chat_id, message_id, sender, sender_name, sent_at, media_type, body, is_from_me, has_attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		messages, func(m *abx.WhatsAppMessage) []any {
			return []any{m.ID, m.BackupID, m.ChatID, m.MessageID, m.Sender, m.SenderName,
				nullTime(m.SentAt), m.MediaType, m.Body, m.IsFromMe, m.HasAttachments}
		})
}

func (s *SQLiteStore) InsertWhatsAppAttachments(attachments []*abx.WhatsAppAttachment) error {
	return insertBatch(s.db, "inserting whatsapp attachments", `
		INSERT INTO whatsapp_attachments (id, message_id, file_id, relative_path, mime_type, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		attachments, func(a *abx.WhatsAppAttachment) []any {
			return []any{a.ID, a.MessageID, a.FileID, a.RelativePath, a.MimeType, a.SizeBytes}
		})
}

func (s *SQLiteStore) InsertConversations(conversations []*abx.Conversation) error {
	return insertBatch(s.db, "inserting conversations", `
		INSERT INTO conversations (id, backup_id, guid, service, display_name, last_message_at, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversations, func(c *abx.Conversation) []any {
			return []any{c.ID, c.BackupID, c.GUID, c.Service, c.DisplayName,
				nullTime(c.LastMessageAt), encodeStrings(c.Participants)}
		})
}

func (s *SQLiteStore) InsertMessages(messages []*abx.Message) error {
	return insertBatch(s.db, "inserting messages", `
		INSERT INTO messages (id, backup_id, conversation_id, message_guid, sender, is_from_me, sent_at, text, has_attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		messages, func(m *abx.Message) []any {
			return []any{m.ID, m.BackupID, m.ConversationID, m.MessageGUID, m.Sender,
				m.IsFromMe, nullTime(m.SentAt), m.Text, m.HasAttachments}
		})
}

func (s *SQLiteStore) InsertMessageAttachments(attachments []*abx.MessageAttachment) error {
	return insertBatch(s.db, "inserting message attachments", `
		INSERT INTO message_attachments (id, message_id, file_id, relative_path, mime_type, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		attachments, func(a *abx.MessageAttachment) []any {
			return []any{a.ID, a.MessageID, a.FileID, a.RelativePath, a.MimeType, a.SizeBytes}
		})
}

func (s *SQLiteStore) InsertNotes(notes []*abx.Note) error {
	return insertBatch(s.db, "inserting notes", `
		INSERT INTO notes (id, backup_id, note_identifier, title, body, folder, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		notes, func(n *abx.Note) []any {
			return []any{n.ID, n.BackupID, n.NoteIdentifier, n.Title, n.Body, n.Folder,
				nullTime(n.CreatedAt), nullTime(n.ModifiedAt)}
		})
}

func (s *SQLiteStore) InsertCalendars(calendars []*abx.Calendar) error {
	return insertBatch(s.db, "inserting calendars", `
		INSERT INTO calendars (id, backup_id, calendar_identifier, name, color, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		calendars, func(c *abx.Calendar) []any {
			return []any{c.ID, c.BackupID, c.CalendarIdentifier, c.Name, c.Color, c.Source}
		})
}

func (s *SQLiteStore) InsertCalendarEvents(events []*abx.CalendarEvent) error {
	return insertBatch(s.db, "inserting calendar events", `
		INSERT INTO calendar_events (id, backup_id, calendar_id, event_identifier, title, location, notes, starts_at, ends_at, is_all_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		events, func(e *abx.CalendarEvent) []any {
			return []any{e.ID, e.BackupID, e.CalendarID, e.EventIdentifier, e.Title, e.Location,
				e.Notes, nullTime(e.StartsAt), nullTime(e.EndsAt), e.IsAllDay}
		})
}

func (s *SQLiteStore) InsertContacts(contacts []*abx.Contact) error {
	return insertBatch(s.db, "inserting contacts", `
		INSERT INTO contacts (id, backup_id, contact_identifier, first_name, last_name, company, emails, phones, created_at, updated_at, avatar_file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contacts, func(c *abx.Contact) []any {
			return []any{c.ID, c.BackupID, c.ContactIdentifier, c.FirstName, c.LastName, c.Company,
				encodeStrings(c.Emails), encodeStrings(c.Phones),
				nullTime(c.CreatedAt), nullTime(c.UpdatedAt), c.AvatarFileID}
		})
}

func (s *SQLiteStore) InsertSearchEntries(entries []*abx.SearchEntry) error {
	return insertBatch(s.db, "inserting search entries", `
		INSERT INTO search_index (id, backup_id, artifact_type, artifact_ref, display_text, search_text)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entries, func(e *abx.SearchEntry) []any {
			return []any{e.ID, e.BackupID, e.ArtifactType, e.ArtifactRef, e.DisplayText, e.SearchText}
		})
}

func insertBatch[T any](db *sql.DB, op, query string, rows []*T, args func(*T) []any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%s: starting transaction: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("%s: preparing statement: %w", op, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(args(row)...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: committing transaction: %w", op, err)
	}
	return nil
}

// Read API

func (s *SQLiteStore) ArtifactCounts(backupID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(artifactTables))
	for _, table := range artifactTables {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE backup_id = ?", table)
		switch table {
		case "whatsapp_attachments":
			query = "SELECT COUNT(*) FROM whatsapp_attachments WHERE message_id IN (SELECT id FROM whatsapp_messages WHERE backup_id = ?)"
		case "message_attachments":
			query = "SELECT COUNT(*) FROM message_attachments WHERE message_id IN (SELECT id FROM messages WHERE backup_id = ?)"
		}

		var count int64
		if err := s.db.QueryRow(query, backupID).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

func (s *SQLiteStore) ListWhatsAppChats(backupID string) ([]*abx.WhatsAppChat, error) {
	rows, err := s.db.Query(`
		SELECT id, backup_id, chat_guid, title, participant_count, last_message_at
		FROM whatsapp_chats
		WHERE backup_id = ?
		ORDER BY last_message_at DESC`, backupID)
	if err != nil {
		return nil, fmt.Errorf("listing whatsapp chats: %w", err)
	}
	defer rows.Close()

	var chats []*abx.WhatsAppChat
	for rows.Next() {
		var chat abx.WhatsAppChat
		var lastMessageAt sql.NullTime
		err := rows.Scan(&chat.ID, &chat.BackupID, &chat.ChatGUID, &chat.Title,
			&chat.ParticipantCount, &lastMessageAt)
		if err != nil {
			return nil, fmt.Errorf("listing whatsapp chats: %w", err)
		}
		chat.LastMessageAt = timePtr(lastMessageAt)
		chats = append(chats, &chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing whatsapp chats: %w", err)
	}
	return chats, nil
}

func (s *SQLiteStore) ListWhatsAppMessages(chatID string) ([]*abx.WhatsAppMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, backup_id, chat_id, message_id, sender, sender_name, sent_at, media_type, body, is_from_me, has_attachments
		FROM whatsapp_messages
		WHERE chat_id = ?
		ORDER BY sent_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing whatsapp messages: %w", err)
	}
	defer rows.Close()

	var messages []*abx.WhatsAppMessage
	for rows.Next() {
		var msg abx.WhatsAppMessage
		var sentAt sql.NullTime
		err := rows.Scan(&msg.ID, &msg.BackupID, &msg.ChatID, &msg.MessageID,
			&msg.Sender, &msg.SenderName, &sentAt, &msg.MediaType,
			&msg.Body, &msg.IsFromMe, &msg.HasAttachments)
		if err != nil {
			return nil, fmt.Errorf("listing whatsapp messages: %w", err)
		}
		msg.SentAt = timePtr(sentAt)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing whatsapp messages: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) ListNotes(backupID string) ([]*abx.Note, error) {
	rows, err := s.db.Query(`
		SELECT id, backup_id, note_identifier, title, body, folder, created_at, modified_at
		FROM notes
		WHERE backup_id = ?
		ORDER BY note_identifier`, backupID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []*abx.Note
	for rows.Next() {
		var note abx.Note
		var createdAt, modifiedAt sql.NullTime
		err := rows.Scan(&note.ID, &note.BackupID, &note.NoteIdentifier, &note.Title,
			&note.Body, &note.Folder, &createdAt, &modifiedAt)
		if err != nil {
			return nil, fmt.Errorf("listing notes: %w", err)
		}
		note.CreatedAt = timePtr(createdAt)
		note.ModifiedAt = timePtr(modifiedAt)
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

func (s *SQLiteStore) ListContacts(backupID string) ([]*abx.Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, backup_id, contact_identifier, first_name, last_name, company, emails, phones, created_at, updated_at, avatar_file_id
		FROM contacts
		WHERE backup_id = ?
		ORDER BY last_name, first_name`, backupID)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*abx.Contact
	for rows.Next() {
		var contact abx.Contact
		var emails, phones string
		var createdAt, updatedAt sql.NullTime
		err := rows.Scan(&contact.ID, &contact.BackupID, &contact.ContactIdentifier,
			&contact.FirstName, &contact.LastName, &contact.Company,
			&emails, &phones, &createdAt, &updatedAt, &contact.AvatarFileID)
		if err != nil {
			return nil, fmt.Errorf("listing contacts: %w", err)
		}
		contact.Emails = decodeStrings(emails)
		contact.Phones = decodeStrings(phones)
		contact.CreatedAt = timePtr(createdAt)
		contact.UpdatedAt = timePtr(updatedAt)
		contacts = append(contacts, &contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	return contacts, nil
}

func (s *SQLiteStore) ListSearchEntries(backupID string) ([]*abx.SearchEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, backup_id, artifact_type, artifact_ref, display_text, search_text
		FROM search_index
		WHERE backup_id = ?
		ORDER BY artifact_type, artifact_ref`, backupID)
	if err != nil {
		return nil, fmt.Errorf("listing search entries: %w", err)
	}
	defer rows.Close()

	var entries []*abx.SearchEntry
	for rows.Next() {
		var entry abx.SearchEntry
		err := rows.Scan(&entry.ID, &entry.BackupID, &entry.ArtifactType,
			&entry.ArtifactRef, &entry.DisplayText, &entry.SearchText)
		if err != nil {
			return nil, fmt.Errorf("listing search entries: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing search entries: %w", err)
	}
	return entries, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// encodeStrings stores a string slice as a JSON array column. nil encodes
// as the empty array so reads never see NULL.
func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		// Strings always marshal.
		return "[]"
	}
	return string(encoded)
}

// decodeStrings reads a JSON array column back into a slice. Malformed
// content decodes to nil.
func decodeStrings(encoded string) []string {
	if encoded == "" || encoded == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil
	}
	return values
}

// Compile-time check that SQLiteStore implements the abx.Store interface
var _ abx.Store = (*SQLiteStore)(nil)
