package abx

import "time"

// Backup status values. A backup starts out pending, moves to indexing
// when a run begins, and ends up indexed or failed. A failed backup can
// be re-indexed.
const (
	StatusPending  = "pending"
	StatusIndexing = "indexing"
	StatusIndexed  = "indexed"
	StatusFailed   = "failed"
)

// Backup is the aggregate root every artifact row belongs to. It is
// registered by backup discovery (outside this module) and mutated by the
// Indexer during a run: the progress triple (Progress, ProgressTotal,
// CurrentArtifact) is polled by external clients while indexing runs.
type Backup struct {
	ID              string // UUID
	Identifier      string // opaque device identifier, unique
	Status          string
	Progress        int64
	ProgressTotal   int64
	CurrentArtifact string // artifact kind currently being ingested, "" when idle
	LastError       string
	LastIndexedAt   *time.Time
	CreatedAt       time.Time
}

// WhatsAppChat is one chat session from a chat-style messaging database.
type WhatsAppChat struct {
	ID               string // UUID
	BackupID         string
	ChatGUID         string // source-side chat identifier (JID or row id)
	Title            string
	ParticipantCount int64
	LastMessageAt    *time.Time
}

// WhatsAppMessage belongs to a WhatsAppChat persisted in the same run.
type WhatsAppMessage struct {
	ID             string // UUID
	BackupID       string
	ChatID         string // FK to WhatsAppChat
	MessageID      string // source-side message identifier
	Sender         string // normalized account identifier
	SenderName     string // resolved display name
	SentAt         *time.Time
	MediaType      string
	Body           string
	IsFromMe       bool
	HasAttachments bool
}

// WhatsAppAttachment belongs to a WhatsAppMessage. It carries no backup
// reference of its own; ownership flows through the message.
type WhatsAppAttachment struct {
	ID           string // UUID
	MessageID    string // FK to WhatsAppMessage
	FileID       string
	RelativePath string
	MimeType     string
	SizeBytes    int64
}

// Conversation is one thread from a generic messaging database.
type Conversation struct {
	ID            string // UUID
	BackupID      string
	GUID          string
	Service       string
	DisplayName   string
	LastMessageAt *time.Time
	Participants  []string // participant handles
}

// Message belongs to a Conversation persisted in the same run.
type Message struct {
	ID             string // UUID
	BackupID       string
	ConversationID string // FK to Conversation
	MessageGUID    string
	Sender         string
	IsFromMe       bool
	SentAt         *time.Time
	Text           string
	HasAttachments bool
}

// MessageAttachment belongs to a Message; like WhatsAppAttachment it has
// no direct backup reference.
type MessageAttachment struct {
	ID           string // UUID
	MessageID    string // FK to Message
	FileID       string
	RelativePath string
	MimeType     string
	SizeBytes    int64
}

// Note is a standalone note; no children.
type Note struct {
	ID             string // UUID
	BackupID       string
	NoteIdentifier string
	Title          string
	Body           string
	Folder         string
	CreatedAt      *time.Time
	ModifiedAt     *time.Time
}

// Calendar groups calendar events.
type Calendar struct {
	ID                 string // UUID
	BackupID           string
	CalendarIdentifier string
	Name               string
	Color              string
	Source             string
}

// CalendarEvent belongs to a Calendar persisted in the same run.
type CalendarEvent struct {
	ID              string // UUID
	BackupID        string
	CalendarID      string // FK to Calendar
	EventIdentifier string
	Title           string
	Location        string
	Notes           string
	StartsAt        *time.Time
	EndsAt          *time.Time
	IsAllDay        bool
}

// Contact is a standalone address-book entry.
type Contact struct {
	ID                string // UUID
	BackupID          string
	ContactIdentifier string
	FirstName         string
	LastName          string
	Company           string
	Emails            []string
	Phones            []string
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
	AvatarFileID      string
}

// PhotoAsset is a standalone photo-library entry.
type PhotoAsset struct {
	ID               string // UUID
	BackupID         string
	AssetID          string
	OriginalFilename string
	RelativePath     string
	FileID           string
	TakenAt          *time.Time
	TimezoneOffset   int64 // minutes
	Width            int64
	Height           int64
	MediaType        string
}

// SearchEntry is one cross-artifact search row, rebuilt alongside the
// artifact rows it is derived from.
type SearchEntry struct {
	ID           string // UUID
	BackupID     string
	ArtifactType string
	ArtifactRef  string // natural identifier of the originating record
	DisplayText  string
	SearchText   string // free-text blob
}
