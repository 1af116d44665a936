package abx

// Kind identifies one category of artifact database within a backup.
type Kind string

const (
	KindPhotos   Kind = "photos"
	KindWhatsApp Kind = "whatsapp"
	KindMessages Kind = "messages"
	KindNotes    Kind = "notes"
	KindCalendar Kind = "calendar"
	KindContacts Kind = "contacts"
)

// IngestOrder is the fixed sequence artifact kinds are ingested in.
var IngestOrder = []Kind{
	KindPhotos,
	KindWhatsApp,
	KindMessages,
	KindNotes,
	KindCalendar,
	KindContacts,
}

// SourceFilenames maps each artifact kind to the database filename it is
// stored under inside a decrypted backup bundle.
var SourceFilenames = map[Kind]string{
	KindPhotos:   "Photos.sqlite",
	KindWhatsApp: "ChatStorage.sqlite",
	KindMessages: "chat.db",
	KindNotes:    "notes.sqlite",
	KindCalendar: "Calendar.sqlite",
	KindContacts: "AddressBook.sqlitedb",
}
