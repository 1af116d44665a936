package extract

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// NoteRecord is one note, with its folder resolved through the folder
// and account tables.
type NoteRecord struct {
	Identifier string
	Title      string
	Body       string
	Folder     string
	CreatedAt  *time.Time
	ModifiedAt *time.Time
}

// noteColumns are the historically-used ZNOTE columns, probed per
// database: the title column in particular has been renamed across OS
// versions.
var noteColumns = []string{
	"Z_PK", "ZIDENTIFIER", "ZTITLE1", "ZTITLE2", "ZBODY",
	"ZFOLDER", "ZACCOUNT", "ZCREATIONDATE", "ZMODIFICATIONDATE",
}

// ParseNotes extracts notes from a notes database. A missing file or
// missing ZNOTE table yields empty results. Note bodies that fail to
// decode as text degrade to an empty body.
func ParseNotes(path string) ([]NoteRecord, error) {
	if !fileExists(path) {
		return nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ok, err := tableExists(db, "ZNOTE")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	accountTitles, err := loadAccountTitles(db)
	if err != nil {
		return nil, err
	}
	folderTitles, err := loadFolderTitles(db, accountTitles)
	if err != nil {
		return nil, err
	}

	cols, err := columnsSubset(db, "ZNOTE", noteColumns...)
	if err != nil {
		return nil, err
	}
	rows, err := queryAll(db, fmt.Sprintf("SELECT %s FROM ZNOTE", strings.Join(cols, ", ")))
	if err != nil {
		return nil, err
	}

	notes := make([]NoteRecord, 0, len(rows))
	for _, r := range rows {
		pk, _ := asInt64(r["Z_PK"])
		identifier := asString(r["ZIDENTIFIER"])
		if identifier == "" {
			identifier = fmt.Sprintf("note-%d", pk)
		}

		folderID, _ := asInt64(r["ZFOLDER"])
		accountID, _ := asInt64(r["ZACCOUNT"])
		folder := folderTitles[folderID]
		if folder == "" {
			folder = accountTitles[accountID]
		}

		notes = append(notes, NoteRecord{
			Identifier: identifier,
			Title:      r.str("ZTITLE1", "ZTITLE2"),
			Body:       asString(r["ZBODY"]),
			Folder:     folder,
			CreatedAt:  DeviceTime(r["ZCREATIONDATE"]),
			ModifiedAt: DeviceTime(r["ZMODIFICATIONDATE"]),
		})
	}
	return notes, nil
}

// loadAccountTitles maps account PKs to account names, if the table exists.
func loadAccountTitles(db *sql.DB) (map[int64]string, error) {
	ok, err := tableExists(db, "ZACCOUNT")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT Z_PK, ZNAME FROM ZACCOUNT")
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(rows))
	for _, r := range rows {
		pk, _ := asInt64(r["Z_PK"])
		titles[pk] = asString(r["ZNAME"])
	}
	return titles, nil
}

// loadFolderTitles maps folder PKs to display titles, qualified by the
// owning account's name when both are known.
func loadFolderTitles(db *sql.DB, accountTitles map[int64]string) (map[int64]string, error) {
	ok, err := tableExists(db, "ZFOLDER")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := queryAll(db, "SELECT Z_PK, ZNAME, ZACCOUNT FROM ZFOLDER")
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(rows))
	for _, r := range rows {
		pk, _ := asInt64(r["Z_PK"])
		accountID, _ := asInt64(r["ZACCOUNT"])
		name := asString(r["ZNAME"])
		account := accountTitles[accountID]
		switch {
		case name != "" && account != "":
			titles[pk] = account + " / " + name
		case name != "":
			titles[pk] = name
		case account != "":
			titles[pk] = account
		}
	}
	return titles, nil
}
