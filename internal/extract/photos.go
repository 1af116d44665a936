package extract

import (
	"strings"
	"time"
)

// PhotoAssetRecord is one photo-library asset, as found in the source
// database. Identifiers are source-local; the orchestrator assigns
// persisted IDs later.
type PhotoAssetRecord struct {
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

// ParsePhotos extracts photo assets from a photo-library database.
// A missing file or missing ZASSET table yields empty results.
func ParsePhotos(path string) ([]PhotoAssetRecord, error) {
	if !fileExists(path) {
		return nil, nil
	}

	db, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ok, err := tableExists(db, "ZASSET")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := queryAll(db, "SELECT * FROM ZASSET")
	if err != nil {
		return nil, err
	}

	assets := make([]PhotoAssetRecord, 0, len(rows))
	for _, r := range rows {
		filename := r.str("ZORIGINALFILENAME", "ZFILENAME")
		directory := r.str("ZDIRECTORY", "ZRELATIVEDIRECTORY")

		var relativePath string
		switch {
		case directory != "" && filename != "":
			relativePath = strings.TrimRight(directory, "/") + "/" + filename
		case filename != "":
			relativePath = filename
		}

		tzOffset, _ := r.int64("ZCAMERATIMESHIFT", "ZTIMEZONESHIFT")
		width, _ := r.int64("ZPIXELWIDTH")
		height, _ := r.int64("ZPIXELHEIGHT")

		assets = append(assets, PhotoAssetRecord{
			AssetID:          r.str("ZUUID", "ZFILENAME", "Z_PK"),
			OriginalFilename: filename,
			RelativePath:     relativePath,
			FileID:           r.str("ZFILEHASH", "ZHASHEDASSETID", "ZMASTER", "Z_PK"),
			TakenAt:          DeviceTime(valueOf(r, "ZDATECREATED", "ZADDEDDATE")),
			TimezoneOffset:   tzOffset,
			Width:            width,
			Height:           height,
			MediaType:        mediaTypeFromKind(r["ZKIND"]),
		})
	}
	return assets, nil
}

// valueOf returns the first non-zero, non-empty value among keys,
// mirroring the fallback-chain reads used throughout the extractors.
func valueOf(r rowMap, keys ...string) any {
	for _, key := range keys {
		if f, ok := asFloat64(r[key]); ok && f != 0 {
			return r[key]
		}
	}
	// No non-zero candidate: return the first present value so a genuine
	// zero still converts.
	for _, key := range keys {
		if r[key] != nil {
			return r[key]
		}
	}
	return nil
}

// mediaTypeFromKind maps the ZKIND enumeration to a media type name.
// Unknown kinds default to "photo".
func mediaTypeFromKind(v any) string {
	kind, ok := asInt64(v)
	if !ok {
		return ""
	}
	switch kind {
	case 0:
		return "photo"
	case 1:
		return "video"
	case 2:
		return "screenshot"
	case 3:
		return "panorama"
	default:
		return "photo"
	}
}
