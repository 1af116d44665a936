package extract

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// WhatsAppChatRecord is one chat session keyed by its source-side GUID.
type WhatsAppChatRecord struct {
	ChatGUID         string
	Title            string
	ParticipantCount int64
	LastMessageAt    *time.Time
}

// WhatsAppMessageRecord is one message, keyed into its chat by ChatGUID.
type WhatsAppMessageRecord struct {
	ChatGUID   string
	MessageID  string
	Sender     string // account identifier (JID), unnormalized
	SenderName string // resolved display name, may be empty
	SentAt     *time.Time
	MediaType  string
	Body       string
	IsFromMe   bool
}

// WhatsAppAttachmentRecord is one media item, keyed into its message by
// the (ChatGUID, MessageID) pair.
type WhatsAppAttachmentRecord struct {
	ChatGUID     string
	MessageID    string
	FileID       string
	RelativePath string
	MimeType     string
	SizeBytes    int64
}

// memberKey identifies a group member within one chat session.
type memberKey struct {
	chatPK int64
	jid    string
}

// ParseWhatsApp extracts chats, messages and attachments from a
// chat-style messaging database. A missing file or missing root tables
// yields empty results.
//
// A message's sender identity is resolved through layered fallbacks:
// the group-membership table first (it maps the message's member
// reference to both JID and display name), then the profile push-name
// table, then — for 1:1 chats when the message is not self-authored —
// the chat counterparty's display name. Group-form JIDs showing up on
// 1:1 chats are remapped to the counterparty JID before lookup.
func ParseWhatsApp(path string) ([]WhatsAppChatRecord, []WhatsAppMessageRecord, []WhatsAppAttachmentRecord, error) {
	if !fileExists(path) {
		return nil, nil, nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer db.Close()

	for _, root := range []string{"ZWACHATSESSION", "ZWAMESSAGE"} {
		ok, err := tableExists(db, root)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			return nil, nil, nil, nil
		}
	}

	profileNames, err := loadProfileNames(db)
	if err != nil {
		return nil, nil, nil, err
	}

	chatRows, err := queryAll(db, "SELECT * FROM ZWACHATSESSION")
	if err != nil {
		return nil, nil, nil, err
	}

	chats := make([]WhatsAppChatRecord, 0, len(chatRows))
	chatGUIDs := make(map[int64]string, len(chatRows))
	partnerNames := make(map[int64]string)
	partnerJIDs := make(map[int64]string)
	for _, r := range chatRows {
		pk, _ := asInt64(r["Z_PK"])
		guid := r.str("ZCONTACTJID", "ZIDENTIFIER", "ZGROUPEVENTID", "Z_PK")
		chatGUIDs[pk] = guid

		if name := r.str("ZPARTNERNAME", "ZPARTNERDISPLAYNAME"); name != "" {
			partnerNames[pk] = name
		}
		if jid := asString(r["ZCONTACTJID"]); jid != "" {
			partnerJIDs[pk] = jid
		}

		participants, _ := r.int64("ZPARTICIPANTSCOUNT")
		chats = append(chats, WhatsAppChatRecord{
			ChatGUID:         guid,
			Title:            r.str("ZPARTNERNAME", "ZPARTNERDISPLAYNAME"),
			ParticipantCount: participants,
			LastMessageAt:    DeviceTime(valueOf(r, "ZLASTMESSAGEDATE", "ZLASTMESSAGETIME")),
		})
	}

	memberJIDs, memberNames, err := loadGroupMembers(db)
	if err != nil {
		return nil, nil, nil, err
	}

	messageRows, err := queryAll(db, "SELECT * FROM ZWAMESSAGE")
	if err != nil {
		return nil, nil, nil, err
	}

	messages := make([]WhatsAppMessageRecord, 0, len(messageRows))
	// message Z_PK -> index into messages, for attaching media items
	messageIndex := make(map[int64]int, len(messageRows))
	for _, r := range messageRows {
		chatPK, _ := asInt64(r["ZCHATSESSION"])
		chatGUID := chatGUIDs[chatPK]
		if chatGUID == "" {
			chatGUID = strconv.FormatInt(chatPK, 10)
		}
		isFromMe := asBool(r["ZISFROMME"])

		senderJID, senderName := resolveSender(
			r, chatPK, chatGUID, isFromMe,
			memberJIDs, memberNames, profileNames, partnerJIDs, partnerNames,
		)

		msg := WhatsAppMessageRecord{
			ChatGUID:   chatGUID,
			MessageID:  r.str("ZMESSAGEID", "ZSTANZAID", "Z_PK"),
			Sender:     senderJID,
			SenderName: senderName,
			SentAt:     DeviceTime(valueOf(r, "ZMESSAGEDATE", "ZMESSAGETIME")),
			MediaType:  r.str("ZGROUPEVENTTYPE", "ZMESSAGETYPE"),
			Body:       asString(r["ZTEXT"]),
			IsFromMe:   isFromMe,
		}
		if pk, ok := asInt64(r["Z_PK"]); ok {
			messageIndex[pk] = len(messages)
		}
		messages = append(messages, msg)
	}

	attachments, err := loadMediaItems(db, messages, messageIndex)
	if err != nil {
		return nil, nil, nil, err
	}

	return chats, messages, attachments, nil
}

// resolveSender applies the sender-identity precedence for one message.
// Each step runs only if the previous produced nothing.
func resolveSender(
	r rowMap,
	chatPK int64,
	chatGUID string,
	isFromMe bool,
	memberJIDs map[int64]string,
	memberNames map[memberKey]string,
	profileNames map[string]string,
	partnerJIDs map[int64]string,
	partnerNames map[int64]string,
) (jid string, name string) {
	// 1. Explicit group membership: the member reference carries the real
	// sender even when the message's from-field holds the group JID.
	if memberFK, ok := asInt64(r["ZGROUPMEMBER"]); ok && memberFK != 0 {
		if memberJID := memberJIDs[memberFK]; memberJID != "" {
			jid = memberJID
			name = memberNames[memberKey{chatPK, memberJID}]
		}
	}

	if jid == "" {
		jid = r.str("ZFROMJID", "ZSENDERJID")
		// A group-form JID on a 1:1 chat means the from-field holds the
		// chat's own identifier; the actual sender is the counterparty.
		if strings.Contains(jid, "@g.us") && !isGroupGUID(chatGUID) {
			if partner := partnerJIDs[chatPK]; partner != "" {
				jid = partner
			}
		}
	}

	// 2. Profile push-name lookup by account identifier.
	if name == "" && jid != "" {
		name = profileNames[jid]
	}

	// 3. 1:1 fallback: an inbound message on a two-party chat can only be
	// from the counterparty.
	if name == "" && !isFromMe && !isGroupGUID(chatGUID) {
		name = partnerNames[chatPK]
	}

	return jid, name
}

func isGroupGUID(guid string) bool {
	return strings.Contains(guid, "@g.us")
}

// loadProfileNames builds the JID -> display-name lookup from the
// profile push-name table, if present.
func loadProfileNames(db *sql.DB) (map[string]string, error) {
	ok, err := tableExists(db, "ZWAPROFILEPUSHNAME")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT * FROM ZWAPROFILEPUSHNAME")
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		jid := r.str("ZJID", "ZCONTACTJID")
		name := r.str("ZPUSHNAME", "ZNAME")
		if jid != "" && name != "" {
			names[jid] = name
		}
	}
	return names, nil
}

// loadGroupMembers builds two lookups from the group-member table, if
// present: member row PK -> JID, and (chat PK, JID) -> display name.
func loadGroupMembers(db *sql.DB) (map[int64]string, map[memberKey]string, error) {
	jids := make(map[int64]string)
	names := make(map[memberKey]string)

	ok, err := tableExists(db, "ZWAGROUPMEMBER")
	if err != nil || !ok {
		return jids, names, err
	}
	rows, err := queryAll(db, "SELECT * FROM ZWAGROUPMEMBER")
	if err != nil {
		return nil, nil, err
	}
	for _, r := range rows {
		memberPK, _ := asInt64(r["Z_PK"])
		chatFK, _ := asInt64(r["ZCHATSESSION"])
		jid := asString(r["ZMEMBERJID"])
		name := r.str("ZCONTACTNAME", "ZPUSHNAME")
		if memberPK != 0 && jid != "" {
			jids[memberPK] = jid
		}
		if chatFK != 0 && jid != "" && name != "" {
			names[memberKey{chatFK, jid}] = name
		}
	}
	return jids, names, nil
}

// loadMediaItems extracts attachments from the media-item table, if
// present, keying each one into its owning message. Media rows whose
// message reference cannot be resolved are dropped.
func loadMediaItems(db *sql.DB, messages []WhatsAppMessageRecord, messageIndex map[int64]int) ([]WhatsAppAttachmentRecord, error) {
	ok, err := tableExists(db, "ZWAMEDIAITEM")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT * FROM ZWAMEDIAITEM")
	if err != nil {
		return nil, err
	}

	var attachments []WhatsAppAttachmentRecord
	for _, r := range rows {
		messageFK, ok := r.int64("ZMESSAGE", "ZMESSAGEID")
		if !ok {
			continue
		}
		idx, ok := messageIndex[messageFK]
		if !ok {
			continue
		}
		msg := messages[idx]

		size, _ := r.int64("ZMEDIAFILESIZE", "ZMEDIASIZE")
		attachments = append(attachments, WhatsAppAttachmentRecord{
			ChatGUID:     msg.ChatGUID,
			MessageID:    msg.MessageID,
			FileID:       r.str("ZFILEHASH", "Z_PK"),
			RelativePath: r.str("ZMEDIALOCALPATH", "ZLOCALPATH"),
			MimeType:     asString(r["ZMEDIAMIMETYPE"]),
			SizeBytes:    size,
		})
	}
	return attachments, nil
}
