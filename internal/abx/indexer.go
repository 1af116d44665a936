package abx

import (
	"fmt"
	"os"
	"strings"

	"abx-go/internal/extract"
)

// DefaultBatchSize bounds how many rows are written per store
// transaction during ingestion.
const DefaultBatchSize = 500

// Indexer is the ingestion orchestrator. It sequences the per-artifact
// extractors over a backup's source databases, relinks extractor-local
// keys to persisted IDs, writes rows in bounded batches and keeps the
// backup's progress triple current while it runs.
//
// A run is strictly sequential; concurrency across backups is the
// dispatcher's concern, and concurrent runs for the same backup are
// refused via a per-backup lease.
type Indexer struct {
	store     Store
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	batchSize int
	leases    *leaseTable
}

// NewIndexer creates an Indexer with the provided dependencies.
// batchSize <= 0 selects DefaultBatchSize.
func NewIndexer(store Store, logger Logger, clock Clock, idgen IDGenerator, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Indexer{
		store:     store,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		batchSize: batchSize,
		leases:    newLeaseTable(),
	}
}

// Run ingests every supplied artifact database for the backup with the
// given identifier. Existing artifact rows for the backup are removed
// first, so re-running with unchanged sources is idempotent. Kinds with
// no supplied or existing source are skipped without progress change.
//
// On any unrecoverable extraction or persistence error the backup is
// transitioned to the failed state with the error recorded, and the
// error is returned; a failed backup may be re-indexed.
func (ix *Indexer) Run(identifier string, sources map[Kind]string) error {
	backup, err := ix.store.FindBackupByIdentifier(identifier)
	if err != nil {
		return fmt.Errorf("finding backup: %w", err)
	}
	if backup == nil {
		return fmt.Errorf("%w: %s", ErrUnknownBackup, identifier)
	}

	release, err := ix.leases.acquire(backup.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := ix.run(backup, sources); err != nil {
		ix.logger.Error("ingestion run failed", "backup", backup.Identifier, "error", err)
		if failErr := ix.store.FailIndexing(backup.ID, err.Error()); failErr != nil {
			ix.logger.Error("recording failed state", "backup", backup.Identifier, "error", failErr)
		}
		return err
	}
	return nil
}

func (ix *Indexer) run(backup *Backup, sources map[Kind]string) error {
	ix.logger.Info("ingestion run started", "backup", backup.Identifier)

	if err := ix.store.BeginIndexing(backup.ID); err != nil {
		return fmt.Errorf("marking backup indexing: %w", err)
	}
	if err := ix.store.TruncateArtifacts(backup.ID); err != nil {
		return fmt.Errorf("truncating artifacts: %w", err)
	}

	for _, kind := range IngestOrder {
		path := sources[kind]
		if path == "" || !sourceExists(path) {
			ix.logger.Debug("no source for artifact kind, skipping", "kind", string(kind))
			continue
		}
		if err := ix.store.SetCurrentArtifact(backup.ID, kind); err != nil {
			return fmt.Errorf("setting current artifact: %w", err)
		}
		if err := ix.ingest(backup, kind, path); err != nil {
			return fmt.Errorf("ingesting %s: %w", kind, err)
		}
	}

	if err := ix.store.FinishIndexing(backup.ID, ix.clock.Now()); err != nil {
		return fmt.Errorf("marking backup indexed: %w", err)
	}
	ix.logger.Info("ingestion run complete", "backup", backup.Identifier)
	return nil
}

func (ix *Indexer) ingest(backup *Backup, kind Kind, path string) error {
	switch kind {
	case KindPhotos:
		return ix.ingestPhotos(backup, path)
	case KindWhatsApp:
		return ix.ingestWhatsApp(backup, path)
	case KindMessages:
		return ix.ingestMessages(backup, path)
	case KindNotes:
		return ix.ingestNotes(backup, path)
	case KindCalendar:
		return ix.ingestCalendar(backup, path)
	case KindContacts:
		return ix.ingestContacts(backup, path)
	default:
		return fmt.Errorf("unknown artifact kind: %s", kind)
	}
}

func (ix *Indexer) ingestPhotos(backup *Backup, path string) error {
	assets, err := extract.ParsePhotos(path)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(len(assets))); err != nil {
		return err
	}

	for offset := 0; offset < len(assets); offset += ix.batchSize {
		chunk := assets[offset:min(offset+ix.batchSize, len(assets))]

		rows := make([]*PhotoAsset, 0, len(chunk))
		items := make([]SearchItem, 0, len(chunk))
		for _, a := range chunk {
			rows = append(rows, &PhotoAsset{
				ID:               ix.idgen.New(),
				BackupID:         backup.ID,
				AssetID:          a.AssetID,
				OriginalFilename: a.OriginalFilename,
				RelativePath:     a.RelativePath,
				FileID:           a.FileID,
				TakenAt:          a.TakenAt,
				TimezoneOffset:   a.TimezoneOffset,
				Width:            a.Width,
				Height:           a.Height,
				MediaType:        a.MediaType,
			})
			items = append(items, SearchItem{
				Ref:     firstNonEmpty(a.AssetID, a.FileID),
				Display: a.OriginalFilename,
				Text:    []string{a.OriginalFilename, a.RelativePath},
			})
		}

		if err := ix.store.InsertPhotoAssets(rows); err != nil {
			return err
		}
		if err := ix.insertSearchEntries(backup.ID, "photo", items); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	ix.logger.Info("photos ingested", "backup", backup.Identifier, "assets", len(assets))
	return nil
}

// chatMsgKey is the extractor-local key of a chat-style message: chats
// and messages are matched by GUID + message ID before any persisted ID
// exists.
type chatMsgKey struct {
	chatGUID  string
	messageID string
}

func (ix *Indexer) ingestWhatsApp(backup *Backup, path string) error {
	chats, messages, attachments, err := extract.ParseWhatsApp(path)
	if err != nil {
		return err
	}
	total := len(chats) + len(messages) + len(attachments)
	if total == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(total)); err != nil {
		return err
	}

	// Parent pass: persist chats, then index their assigned IDs by the
	// extractor-local GUID for relinking messages.
	chatIDs := make(map[string]string, len(chats))
	for offset := 0; offset < len(chats); offset += ix.batchSize {
		chunk := chats[offset:min(offset+ix.batchSize, len(chats))]

		rows := make([]*WhatsAppChat, 0, len(chunk))
		for _, c := range chunk {
			rows = append(rows, &WhatsAppChat{
				ID:               ix.idgen.New(),
				BackupID:         backup.ID,
				ChatGUID:         c.ChatGUID,
				Title:            c.Title,
				ParticipantCount: c.ParticipantCount,
				LastMessageAt:    c.LastMessageAt,
			})
		}
		if err := ix.store.InsertWhatsAppChats(rows); err != nil {
			return err
		}
		for _, row := range rows {
			chatIDs[row.ChatGUID] = row.ID
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	withAttachments := make(map[chatMsgKey]bool, len(attachments))
	for _, a := range attachments {
		withAttachments[chatMsgKey{a.ChatGUID, a.MessageID}] = true
	}

	// Child pass: messages relinked to persisted chats. Messages whose
	// chat cannot be resolved are dropped, never written with a dangling
	// reference.
	messageIDs := make(map[chatMsgKey]string, len(messages))
	var droppedMessages int
	for offset := 0; offset < len(messages); offset += ix.batchSize {
		chunk := messages[offset:min(offset+ix.batchSize, len(messages))]

		rows := make([]*WhatsAppMessage, 0, len(chunk))
		keys := make([]chatMsgKey, 0, len(chunk))
		for _, m := range chunk {
			chatID := chatIDs[m.ChatGUID]
			if chatID == "" {
				droppedMessages++
				continue
			}
			key := chatMsgKey{m.ChatGUID, m.MessageID}
			sender := m.Sender
			if sender != "" {
				sender = extract.NormalizeSender(sender)
			}
			rows = append(rows, &WhatsAppMessage{
				ID:             ix.idgen.New(),
				BackupID:       backup.ID,
				ChatID:         chatID,
				MessageID:      m.MessageID,
				Sender:         sender,
				SenderName:     m.SenderName,
				SentAt:         m.SentAt,
				MediaType:      m.MediaType,
				Body:           m.Body,
				IsFromMe:       m.IsFromMe,
				HasAttachments: withAttachments[key],
			})
			keys = append(keys, key)
		}
		if len(rows) == 0 {
			continue
		}
		if err := ix.store.InsertWhatsAppMessages(rows); err != nil {
			return err
		}
		for i, row := range rows {
			messageIDs[keys[i]] = row.ID
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	// Grandchild pass: attachments relinked to persisted messages.
	var droppedAttachments int
	for offset := 0; offset < len(attachments); offset += ix.batchSize {
		chunk := attachments[offset:min(offset+ix.batchSize, len(attachments))]

		rows := make([]*WhatsAppAttachment, 0, len(chunk))
		for _, a := range chunk {
			messageID := messageIDs[chatMsgKey{a.ChatGUID, a.MessageID}]
			if messageID == "" {
				droppedAttachments++
				continue
			}
			rows = append(rows, &WhatsAppAttachment{
				ID:           ix.idgen.New(),
				MessageID:    messageID,
				FileID:       a.FileID,
				RelativePath: a.RelativePath,
				MimeType:     a.MimeType,
				SizeBytes:    a.SizeBytes,
			})
		}
		if len(rows) == 0 {
			continue
		}
		if err := ix.store.InsertWhatsAppAttachments(rows); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	if droppedMessages > 0 || droppedAttachments > 0 {
		ix.logger.Warn("dropped records with unresolved parents",
			"backup", backup.Identifier,
			"messages", droppedMessages,
			"attachments", droppedAttachments)
	}
	ix.logger.Info("whatsapp ingested", "backup", backup.Identifier,
		"chats", len(chats), "messages", len(messages), "attachments", len(attachments))
	return nil
}

func (ix *Indexer) ingestMessages(backup *Backup, path string) error {
	conversations, messages, attachments, err := extract.ParseMessages(path)
	if err != nil {
		return err
	}
	total := len(conversations) + len(messages) + len(attachments)
	if total == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(total)); err != nil {
		return err
	}

	conversationIDs := make(map[string]string, len(conversations))
	for offset := 0; offset < len(conversations); offset += ix.batchSize {
		chunk := conversations[offset:min(offset+ix.batchSize, len(conversations))]

		rows := make([]*Conversation, 0, len(chunk))
		for _, c := range chunk {
			rows = append(rows, &Conversation{
				ID:            ix.idgen.New(),
				BackupID:      backup.ID,
				GUID:          c.GUID,
				Service:       c.Service,
				DisplayName:   c.DisplayName,
				LastMessageAt: c.LastMessageAt,
				Participants:  c.Participants,
			})
		}
		if err := ix.store.InsertConversations(rows); err != nil {
			return err
		}
		for _, row := range rows {
			conversationIDs[row.GUID] = row.ID
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	withAttachments := make(map[string]bool, len(attachments))
	for _, a := range attachments {
		withAttachments[a.MessageGUID] = true
	}

	messageIDs := make(map[string]string, len(messages))
	var droppedMessages int
	for offset := 0; offset < len(messages); offset += ix.batchSize {
		chunk := messages[offset:min(offset+ix.batchSize, len(messages))]

		rows := make([]*Message, 0, len(chunk))
		guids := make([]string, 0, len(chunk))
		for _, m := range chunk {
			conversationID := conversationIDs[m.ChatGUID]
			if conversationID == "" {
				droppedMessages++
				continue
			}
			rows = append(rows, &Message{
				ID:             ix.idgen.New(),
				BackupID:       backup.ID,
				ConversationID: conversationID,
				MessageGUID:    m.GUID,
				Sender:         m.Sender,
				IsFromMe:       m.IsFromMe,
				SentAt:         m.SentAt,
				Text:           m.Text,
				HasAttachments: withAttachments[m.GUID],
			})
			guids = append(guids, m.GUID)
		}
		if len(rows) == 0 {
			continue
		}
		if err := ix.store.InsertMessages(rows); err != nil {
			return err
		}
		for i, row := range rows {
			messageIDs[guids[i]] = row.ID
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	var droppedAttachments int
	for offset := 0; offset < len(attachments); offset += ix.batchSize {
		chunk := attachments[offset:min(offset+ix.batchSize, len(attachments))]

		rows := make([]*MessageAttachment, 0, len(chunk))
		for _, a := range chunk {
			messageID := messageIDs[a.MessageGUID]
			if messageID == "" {
				droppedAttachments++
				continue
			}
			rows = append(rows, &MessageAttachment{
				ID:           ix.idgen.New(),
				MessageID:    messageID,
				FileID:       a.FileID,
				RelativePath: a.RelativePath,
				MimeType:     a.MimeType,
				SizeBytes:    a.SizeBytes,
			})
		}
		if len(rows) == 0 {
			continue
		}
		if err := ix.store.InsertMessageAttachments(rows); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	if droppedMessages > 0 || droppedAttachments > 0 {
		ix.logger.Warn("dropped records with unresolved parents",
			"backup", backup.Identifier,
			"messages", droppedMessages,
			"attachments", droppedAttachments)
	}
	ix.logger.Info("messages ingested", "backup", backup.Identifier,
		"conversations", len(conversations), "messages", len(messages), "attachments", len(attachments))
	return nil
}

func (ix *Indexer) ingestNotes(backup *Backup, path string) error {
	notes, err := extract.ParseNotes(path)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(len(notes))); err != nil {
		return err
	}

	for offset := 0; offset < len(notes); offset += ix.batchSize {
		chunk := notes[offset:min(offset+ix.batchSize, len(notes))]

		rows := make([]*Note, 0, len(chunk))
		items := make([]SearchItem, 0, len(chunk))
		for _, n := range chunk {
			rows = append(rows, &Note{
				ID:             ix.idgen.New(),
				BackupID:       backup.ID,
				NoteIdentifier: n.Identifier,
				Title:          n.Title,
				Body:           n.Body,
				Folder:         n.Folder,
				CreatedAt:      n.CreatedAt,
				ModifiedAt:     n.ModifiedAt,
			})
			items = append(items, SearchItem{
				Ref:     n.Identifier,
				Display: n.Title,
				Text:    []string{n.Title, n.Folder, n.Body},
			})
		}
		if err := ix.store.InsertNotes(rows); err != nil {
			return err
		}
		if err := ix.insertSearchEntries(backup.ID, "note", items); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	ix.logger.Info("notes ingested", "backup", backup.Identifier, "notes", len(notes))
	return nil
}

func (ix *Indexer) ingestCalendar(backup *Backup, path string) error {
	calendars, events, err := extract.ParseCalendar(path)
	if err != nil {
		return err
	}
	total := len(calendars) + len(events)
	if total == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(total)); err != nil {
		return err
	}

	calendarIDs := make(map[string]string, len(calendars))
	for offset := 0; offset < len(calendars); offset += ix.batchSize {
		chunk := calendars[offset:min(offset+ix.batchSize, len(calendars))]

		rows := make([]*Calendar, 0, len(chunk))
		for _, c := range chunk {
			rows = append(rows, &Calendar{
				ID:                 ix.idgen.New(),
				BackupID:           backup.ID,
				CalendarIdentifier: c.Identifier,
				Name:               c.Name,
				Color:              c.Color,
				Source:             c.Source,
			})
		}
		if err := ix.store.InsertCalendars(rows); err != nil {
			return err
		}
		for _, row := range rows {
			calendarIDs[row.CalendarIdentifier] = row.ID
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	var droppedEvents int
	for offset := 0; offset < len(events); offset += ix.batchSize {
		chunk := events[offset:min(offset+ix.batchSize, len(events))]

		rows := make([]*CalendarEvent, 0, len(chunk))
		for _, e := range chunk {
			calendarID := calendarIDs[e.CalendarIdentifier]
			if calendarID == "" {
				droppedEvents++
				continue
			}
			rows = append(rows, &CalendarEvent{
				ID:              ix.idgen.New(),
				BackupID:        backup.ID,
				CalendarID:      calendarID,
				EventIdentifier: e.Identifier,
				Title:           e.Title,
				Location:        e.Location,
				Notes:           e.Notes,
				StartsAt:        e.StartsAt,
				EndsAt:          e.EndsAt,
				IsAllDay:        e.IsAllDay,
			})
		}
		if len(rows) == 0 {
			continue
		}
		if err := ix.store.InsertCalendarEvents(rows); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	if droppedEvents > 0 {
		ix.logger.Warn("dropped events with unresolved calendars",
			"backup", backup.Identifier, "events", droppedEvents)
	}
	ix.logger.Info("calendar ingested", "backup", backup.Identifier,
		"calendars", len(calendars), "events", len(events))
	return nil
}

func (ix *Indexer) ingestContacts(backup *Backup, path string) error {
	contacts, err := extract.ParseContacts(path)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}
	if err := ix.store.AddProgressTotal(backup.ID, int64(len(contacts))); err != nil {
		return err
	}

	for offset := 0; offset < len(contacts); offset += ix.batchSize {
		chunk := contacts[offset:min(offset+ix.batchSize, len(contacts))]

		rows := make([]*Contact, 0, len(chunk))
		items := make([]SearchItem, 0, len(chunk))
		for _, c := range chunk {
			rows = append(rows, &Contact{
				ID:                ix.idgen.New(),
				BackupID:          backup.ID,
				ContactIdentifier: c.Identifier,
				FirstName:         c.FirstName,
				LastName:          c.LastName,
				Company:           c.Company,
				Emails:            c.Emails,
				Phones:            c.Phones,
				CreatedAt:         c.CreatedAt,
				UpdatedAt:         c.UpdatedAt,
				AvatarFileID:      c.AvatarFileID,
			})

			display := strings.TrimSpace(c.FirstName + " " + c.LastName)
			if display == "" {
				display = c.Company
			}
			text := []string{c.FirstName, c.LastName, c.Company}
			text = append(text, c.Emails...)
			text = append(text, c.Phones...)
			items = append(items, SearchItem{
				Ref:     c.Identifier,
				Display: display,
				Text:    text,
			})
		}
		if err := ix.store.InsertContacts(rows); err != nil {
			return err
		}
		if err := ix.insertSearchEntries(backup.ID, "contact", items); err != nil {
			return err
		}
		if err := ix.store.AdvanceProgress(backup.ID, int64(len(rows))); err != nil {
			return err
		}
	}

	ix.logger.Info("contacts ingested", "backup", backup.Identifier, "contacts", len(contacts))
	return nil
}

func (ix *Indexer) insertSearchEntries(backupID, artifactType string, items []SearchItem) error {
	entries := BuildSearchEntries(ix.idgen, backupID, artifactType, items)
	if len(entries) == 0 {
		return nil
	}
	return ix.store.InsertSearchEntries(entries)
}

func sourceExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
