package extract

import (
	"database/sql"
	"fmt"
	"time"
)

// ConversationRecord is one thread from a generic messaging database.
type ConversationRecord struct {
	GUID          string
	Service       string
	DisplayName   string
	LastMessageAt *time.Time
	Participants  []string
}

// MessageRecord is one message, keyed into its thread by ChatGUID.
type MessageRecord struct {
	GUID     string
	ChatGUID string
	Sender   string
	IsFromMe bool
	SentAt   *time.Time
	Text     string
}

// MessageAttachmentRecord is one attachment, keyed into its message by
// MessageGUID.
type MessageAttachmentRecord struct {
	MessageGUID  string
	FileID       string
	RelativePath string
	MimeType     string
	SizeBytes    int64
}

// ParseMessages extracts conversations, messages and attachments from a
// generic messaging database. A missing file or missing chat/message
// tables yields empty results.
func ParseMessages(path string) ([]ConversationRecord, []MessageRecord, []MessageAttachmentRecord, error) {
	if !fileExists(path) {
		return nil, nil, nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer db.Close()

	for _, root := range []string{"chat", "message"} {
		ok, err := tableExists(db, root)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			return nil, nil, nil, nil
		}
	}

	handles, err := loadHandles(db)
	if err != nil {
		return nil, nil, nil, err
	}
	participants, err := loadChatParticipants(db, handles)
	if err != nil {
		return nil, nil, nil, err
	}

	conversations, err := loadConversations(db, participants)
	if err != nil {
		return nil, nil, nil, err
	}

	messages, err := loadConversationMessages(db)
	if err != nil {
		return nil, nil, nil, err
	}

	attachments, err := loadMessageAttachments(db)
	if err != nil {
		return nil, nil, nil, err
	}

	return conversations, messages, attachments, nil
}

// loadHandles maps handle ROWIDs to their transport addresses.
func loadHandles(db *sql.DB) (map[int64]string, error) {
	ok, err := tableExists(db, "handle")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT ROWID, id FROM handle")
	if err != nil {
		return nil, err
	}
	handles := make(map[int64]string, len(rows))
	for _, r := range rows {
		rowid, _ := asInt64(r["ROWID"])
		if id := asString(r["id"]); id != "" {
			handles[rowid] = id
		}
	}
	return handles, nil
}

// loadChatParticipants maps chat ROWIDs to their participant handles via
// the chat/handle join table.
func loadChatParticipants(db *sql.DB, handles map[int64]string) (map[int64][]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	ok, err := tableExists(db, "chat_handle_join")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT chat_id, handle_id FROM chat_handle_join")
	if err != nil {
		return nil, err
	}
	mapping := make(map[int64][]string)
	for _, r := range rows {
		chatID, _ := asInt64(r["chat_id"])
		handleID, _ := asInt64(r["handle_id"])
		if handle := handles[handleID]; handle != "" {
			mapping[chatID] = append(mapping[chatID], handle)
		}
	}
	return mapping, nil
}

func loadConversations(db *sql.DB, participants map[int64][]string) ([]ConversationRecord, error) {
	rows, err := queryAll(db, "SELECT ROWID, guid, service_name, display_name, last_read_message_timestamp FROM chat")
	if err != nil {
		return nil, err
	}
	conversations := make([]ConversationRecord, 0, len(rows))
	for _, r := range rows {
		rowid, _ := asInt64(r["ROWID"])
		guid := asString(r["guid"])
		if guid == "" {
			guid = fmt.Sprintf("chat-%d", rowid)
		}
		conversations = append(conversations, ConversationRecord{
			GUID:          guid,
			Service:       asString(r["service_name"]),
			DisplayName:   asString(r["display_name"]),
			LastMessageAt: DeviceTime(r["last_read_message_timestamp"]),
			Participants:  participants[rowid],
		})
	}
	return conversations, nil
}

func loadConversationMessages(db *sql.DB) ([]MessageRecord, error) {
	rows, err := queryAll(db, `
		SELECT
			message.ROWID AS message_rowid,
			message.guid,
			message.date,
			message.text,
			message.is_from_me,
			chat.guid AS chat_guid,
			handle.id AS sender_handle
		FROM message
		LEFT JOIN chat_message_join cmj ON cmj.message_id = message.ROWID
		LEFT JOIN chat ON chat.ROWID = cmj.chat_id
		LEFT JOIN handle ON handle.ROWID = message.handle_id
		ORDER BY message.date ASC
	`)
	if err != nil {
		return nil, err
	}
	messages := make([]MessageRecord, 0, len(rows))
	for _, r := range rows {
		rowid, _ := asInt64(r["message_rowid"])
		guid := asString(r["guid"])
		if guid == "" {
			guid = fmt.Sprintf("message-%d", rowid)
		}
		messages = append(messages, MessageRecord{
			GUID:     guid,
			ChatGUID: asString(r["chat_guid"]),
			Sender:   asString(r["sender_handle"]),
			IsFromMe: asBool(r["is_from_me"]),
			SentAt:   DeviceTime(r["date"]),
			Text:     asString(r["text"]),
		})
	}
	return messages, nil
}

func loadMessageAttachments(db *sql.DB) ([]MessageAttachmentRecord, error) {
	for _, table := range []string{"attachment", "message_attachment_join"} {
		ok, err := tableExists(db, table)
		if err != nil || !ok {
			return nil, err
		}
	}
	rows, err := queryAll(db, `
		SELECT
			attachment.ROWID AS attachment_rowid,
			attachment.guid AS attachment_guid,
			attachment.filename,
			attachment.mime_type,
			attachment.total_bytes,
			attachment.transfer_name,
			message.guid AS message_guid
		FROM attachment
		JOIN message_attachment_join maj ON maj.attachment_id = attachment.ROWID
		JOIN message ON message.ROWID = maj.message_id
	`)
	if err != nil {
		return nil, err
	}
	attachments := make([]MessageAttachmentRecord, 0, len(rows))
	for _, r := range rows {
		size, _ := r.int64("total_bytes")
		attachments = append(attachments, MessageAttachmentRecord{
			MessageGUID:  asString(r["message_guid"]),
			FileID:       r.str("attachment_guid", "attachment_rowid"),
			RelativePath: r.str("filename", "transfer_name"),
			MimeType:     asString(r["mime_type"]),
			SizeBytes:    size,
		})
	}
	return attachments, nil
}
