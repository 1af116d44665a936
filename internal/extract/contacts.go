package extract

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ContactRecord is one address-book entry with its multi-value emails
// and phone numbers folded in.
type ContactRecord struct {
	Identifier   string
	FirstName    string
	LastName     string
	Company      string
	Emails       []string
	Phones       []string
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
	AvatarFileID string
}

// Multi-value property codes used by the address-book schema.
const (
	propertyPhone = 3
	propertyEmail = 4
)

// contactColumns are the ABPerson columns of interest, probed per
// database since older schemas lack some of them. ROWID is not probed:
// the implicit rowid never shows up in table_info, it is always selected.
var contactColumns = []string{
	"First", "Last", "Organization",
	"CreationDate", "ModificationDate", "ImageURI",
}

// ParseContacts extracts contacts from an address-book database.
// A missing file or missing ABPerson table yields empty results.
func ParseContacts(path string) ([]ContactRecord, error) {
	if !fileExists(path) {
		return nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ok, err := tableExists(db, "ABPerson")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	multiValues, err := loadMultiValues(db)
	if err != nil {
		return nil, err
	}

	cols, err := columnsSubset(db, "ABPerson", contactColumns...)
	if err != nil {
		return nil, err
	}
	cols = append([]string{"ROWID"}, cols...)
	rows, err := queryAll(db, fmt.Sprintf("SELECT %s FROM ABPerson", strings.Join(cols, ", ")))
	if err != nil {
		return nil, err
	}

	contacts := make([]ContactRecord, 0, len(rows))
	for _, r := range rows {
		personID, _ := asInt64(r["rowid"])
		contacts = append(contacts, ContactRecord{
			Identifier:   fmt.Sprintf("contact-%d", personID),
			FirstName:    asString(r["First"]),
			LastName:     asString(r["Last"]),
			Company:      asString(r["Organization"]),
			Emails:       multiValues[multiValueKey{personID, propertyEmail}],
			Phones:       multiValues[multiValueKey{personID, propertyPhone}],
			CreatedAt:    DeviceTime(r["CreationDate"]),
			UpdatedAt:    DeviceTime(r["ModificationDate"]),
			AvatarFileID: asString(r["ImageURI"]),
		})
	}
	return contacts, nil
}

// multiValueKey addresses one person's values for one property code.
type multiValueKey struct {
	personID int64
	property int64
}

// loadMultiValues reads the multi-value table (emails, phone numbers)
// grouped by person and property, if the tables exist.
func loadMultiValues(db *sql.DB) (map[multiValueKey][]string, error) {
	for _, table := range []string{"ABMultiValue", "ABMultiValueLabel"} {
		ok, err := tableExists(db, table)
		if err != nil || !ok {
			return nil, err
		}
	}

	rows, err := queryAll(db, "SELECT record_id, property, value FROM ABMultiValue")
	if err != nil {
		return nil, err
	}

	values := make(map[multiValueKey][]string)
	for _, r := range rows {
		property, _ := asInt64(r["property"])
		if property != propertyPhone && property != propertyEmail {
			continue
		}
		recordID, _ := asInt64(r["record_id"])
		value := asString(r["value"])
		if value == "" {
			continue
		}
		key := multiValueKey{recordID, property}
		values[key] = append(values[key], value)
	}
	return values, nil
}
