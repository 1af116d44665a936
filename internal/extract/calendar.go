package extract

import (
	"fmt"
	"time"
)

// CalendarRecord is one calendar, keyed by its source-side identifier.
type CalendarRecord struct {
	Identifier string
	Name       string
	Color      string
	Source     string
}

// CalendarEventRecord is one event, keyed into its calendar by
// CalendarIdentifier.
type CalendarEventRecord struct {
	Identifier         string
	CalendarIdentifier string
	Title              string
	Location           string
	Notes              string
	StartsAt           *time.Time
	EndsAt             *time.Time
	IsAllDay           bool
}

// ParseCalendar extracts calendars and events from a calendar database.
// A missing file or missing Calendar/Event tables yields empty results.
func ParseCalendar(path string) ([]CalendarRecord, []CalendarEventRecord, error) {
	if !fileExists(path) {
		return nil, nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	for _, root := range []string{"Calendar", "Event"} {
		ok, err := tableExists(db, root)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, nil
		}
	}

	// ROWID selected explicitly: SELECT * omits the implicit rowid.
	calendarRows, err := queryAll(db, "SELECT ROWID, * FROM Calendar")
	if err != nil {
		return nil, nil, err
	}
	calendars := make([]CalendarRecord, 0, len(calendarRows))
	for _, r := range calendarRows {
		rowid, _ := asInt64(r["rowid"])
		identifier := asString(r["uid"])
		if identifier == "" {
			identifier = fmt.Sprintf("calendar-%d", rowid)
		}
		name := asString(r["title"])
		if name == "" {
			name = identifier
		}
		calendars = append(calendars, CalendarRecord{
			Identifier: identifier,
			Name:       name,
			Color:      asString(r["color"]),
			Source:     asString(r["source"]),
		})
	}

	eventRows, err := queryAll(db, `
		SELECT
			Event.ROWID AS event_rowid,
			Event.uid,
			Event.summary,
			Event.location,
			Event.description,
			Event.start_date,
			Event.end_date,
			Event.all_day,
			Calendar.uid AS calendar_uid,
			Calendar.ROWID AS calendar_rowid
		FROM Event
		LEFT JOIN Calendar ON Calendar.ROWID = Event.calendar_id
	`)
	if err != nil {
		return nil, nil, err
	}
	events := make([]CalendarEventRecord, 0, len(eventRows))
	for _, r := range eventRows {
		eventRowID, _ := asInt64(r["event_rowid"])
		calendarRowID, _ := asInt64(r["calendar_rowid"])

		identifier := asString(r["uid"])
		if identifier == "" {
			identifier = fmt.Sprintf("event-%d", eventRowID)
		}
		calendarIdentifier := asString(r["calendar_uid"])
		if calendarIdentifier == "" {
			calendarIdentifier = fmt.Sprintf("calendar-%d", calendarRowID)
		}

		events = append(events, CalendarEventRecord{
			Identifier:         identifier,
			CalendarIdentifier: calendarIdentifier,
			Title:              asString(r["summary"]),
			Location:           asString(r["location"]),
			Notes:              asString(r["description"]),
			StartsAt:           DeviceTime(r["start_date"]),
			EndsAt:             DeviceTime(r["end_date"]),
			IsAllDay:           asBool(r["all_day"]),
		})
	}

	return calendars, events, nil
}
