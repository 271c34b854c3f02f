package zoterodb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/espace/zotsync/internal/backends/zotero"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRecord(ctx context.Context, q queryer, itemID int64) (records.Record, error) {
	var key, itemType, version, modified string
	// timestamps are cast so the driver hands them back verbatim
	err := q.QueryRowContext(ctx, `
SELECT i.key, t.typeName, CAST(i.clientDateModified AS TEXT), CAST(i.dateModified AS TEXT)
FROM items i JOIN itemTypes t ON t.itemTypeID = i.itemTypeID
WHERE i.itemID = ?`, itemID).Scan(&key, &itemType, &version, &modified)
	if err != nil {
		return records.Record{}, err
	}

	fields, err := readFields(ctx, q, itemID)
	if err != nil {
		return records.Record{}, err
	}
	creators, err := readCreators(ctx, q, itemID)
	if err != nil {
		return records.Record{}, err
	}
	tags, err := readTags(ctx, q, itemID)
	if err != nil {
		return records.Record{}, err
	}

	doi := fields["DOI"]
	if doi == "" {
		doi = zotero.ExtraDOI(fields["extra"])
	}
	mod, _ := time.ParseInLocation(constants.TimeFormatZotero, modified, time.UTC)
	return records.Record{
		ID:       key,
		Version:  version,
		Modified: mod,
		Fields: records.Fields{
			ItemType: itemType,
			Title:    fields["title"],
			Authors:  zotero.Authors(creators),
			Year:     rows.GuessYear(fields["date"]),
			Venue:    fields[zotero.VenueField(itemType)],
			DOI:      doi,
			Abstract: fields["abstractNote"],
			URL:      fields["url"],
			Tags:     tags,
		},
	}, nil
}

func readFields(ctx context.Context, q queryer, itemID int64) (map[string]string, error) {
	res, err := q.QueryContext(ctx, `
SELECT f.fieldName, v.value
FROM itemData d
JOIN fields f ON f.fieldID = d.fieldID
JOIN itemDataValues v ON v.valueID = d.valueID
WHERE d.itemID = ?`, itemID)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := map[string]string{}
	for res.Next() {
		var name string
		var value sql.NullString
		if err := res.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value.String
	}
	return out, res.Err()
}

func readCreators(ctx context.Context, q queryer, itemID int64) ([]zotero.Creator, error) {
	res, err := q.QueryContext(ctx, `
SELECT c.firstName, c.lastName, c.fieldMode, ct.creatorType
FROM itemCreators ic
JOIN creators c ON c.creatorID = ic.creatorID
JOIN creatorTypes ct ON ct.creatorTypeID = ic.creatorTypeID
WHERE ic.itemID = ?
ORDER BY ic.orderIndex`, itemID)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []zotero.Creator
	for res.Next() {
		var first, last sql.NullString
		var mode int
		var c zotero.Creator
		if err := res.Scan(&first, &last, &mode, &c.Type); err != nil {
			return nil, err
		}
		c.First, c.Last, c.Single = first.String, last.String, mode == 1
		out = append(out, c)
	}
	return out, res.Err()
}

func readTags(ctx context.Context, q queryer, itemID int64) ([]string, error) {
	res, err := q.QueryContext(ctx, `
SELECT t.name
FROM itemTags it JOIN tags t ON t.tagID = it.tagID
WHERE it.itemID = ?
ORDER BY it.rowid`, itemID)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []string
	for res.Next() {
		var name string
		if err := res.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, res.Err()
}

func insertItem(ctx context.Context, tx *sql.Tx, libraryID int64, f records.Fields, now time.Time) (int64, error) {
	itemType := f.ItemType
	if itemType == "" {
		itemType = constants.DefaultItemType
	}
	typeID, err := lookupID(ctx, tx, `SELECT itemTypeID FROM itemTypes WHERE typeName = ?`, itemType)
	if err != nil {
		return 0, err
	}
	if typeID == 0 {
		return 0, errors.NewValidationError("item_type", itemType, "unknown Zotero item type")
	}

	key, err := freeKey(ctx, tx, libraryID)
	if err != nil {
		return 0, err
	}
	ts := now.UTC().Format(constants.TimeFormatZotero)
	res, err := tx.ExecContext(ctx, `
INSERT INTO items (itemTypeID, libraryID, key, dateAdded, dateModified, clientDateModified, version, synced)
VALUES (?, ?, ?, ?, ?, ?, 0, 0)`, typeID, libraryID, key, ts, ts, ts)
	if err != nil {
		return 0, err
	}
	itemID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	values := map[string]string{
		"title":        f.Title,
		"date":         formatDate(f.Year),
		"abstractNote": f.Abstract,
		"url":          f.URL,
	}
	values[zotero.VenueField(itemType)] = f.Venue
	if zotero.HasDOIField(itemType) {
		values["DOI"] = f.DOI
	} else {
		values["extra"] = zotero.WithExtraDOI("", f.DOI)
	}
	for name, v := range values {
		if v == "" {
			continue
		}
		if err := setField(ctx, tx, itemID, name, v); err != nil {
			return 0, err
		}
	}
	if err := writeCreators(ctx, tx, itemID, zotero.ReplaceAuthors(f.Authors, nil)); err != nil {
		return 0, err
	}
	return itemID, writeTags(ctx, tx, itemID, f.Tags)
}

func freeKey(ctx context.Context, tx *sql.Tx, libraryID int64) (string, error) {
	for {
		key := zotero.NewKey()
		id, err := lookupID(ctx, tx, `SELECT itemID FROM items WHERE libraryID = ? AND key = ?`, libraryID, key)
		if err != nil || id == 0 {
			return key, err
		}
	}
}

func applyPatch(ctx context.Context, tx *sql.Tx, itemID int64, p records.Patch) error {
	var itemType string
	err := tx.QueryRowContext(ctx, `
SELECT t.typeName FROM items i JOIN itemTypes t ON t.itemTypeID = i.itemTypeID
WHERE i.itemID = ?`, itemID).Scan(&itemType)
	if err != nil {
		return err
	}

	set := func(name string, v *string) error {
		if v == nil {
			return nil
		}
		return setField(ctx, tx, itemID, name, *v)
	}
	if err := set("title", p.Title); err != nil {
		return err
	}
	if p.Year != nil {
		date := formatDate(*p.Year)
		if err := set("date", &date); err != nil {
			return err
		}
	}
	if err := set(zotero.VenueField(itemType), p.Venue); err != nil {
		return err
	}
	if p.DOI != nil {
		if zotero.HasDOIField(itemType) {
			if err := set("DOI", p.DOI); err != nil {
				return err
			}
		} else {
			fields, err := readFields(ctx, tx, itemID)
			if err != nil {
				return err
			}
			extra := zotero.WithExtraDOI(fields["extra"], *p.DOI)
			if err := set("extra", &extra); err != nil {
				return err
			}
		}
	}
	if err := set("abstractNote", p.Abstract); err != nil {
		return err
	}
	if err := set("url", p.URL); err != nil {
		return err
	}
	if p.Authors != nil {
		current, err := readCreators(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := writeCreators(ctx, tx, itemID, zotero.ReplaceAuthors(*p.Authors, current)); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		return writeTags(ctx, tx, itemID, *p.Tags)
	}
	return nil
}

// setField stores one field value. An empty value removes the field.
func setField(ctx context.Context, tx *sql.Tx, itemID int64, name, value string) error {
	fieldID, err := lookupID(ctx, tx, `SELECT fieldID FROM fields WHERE fieldName = ?`, name)
	if err != nil {
		return err
	}
	if fieldID == 0 {
		return errors.NewValidationError("field", name, "unknown Zotero field")
	}
	if value == "" {
		_, err := tx.ExecContext(ctx, `DELETE FROM itemData WHERE itemID = ? AND fieldID = ?`, itemID, fieldID)
		return err
	}

	valueID, err := lookupID(ctx, tx, `SELECT valueID FROM itemDataValues WHERE value = ?`, value)
	if err != nil {
		return err
	}
	if valueID == 0 {
		if valueID, err = insertID(ctx, tx, `INSERT INTO itemDataValues (value) VALUES (?)`, value); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO itemData (itemID, fieldID, valueID) VALUES (?, ?, ?)`, itemID, fieldID, valueID)
	return err
}

func writeCreators(ctx context.Context, tx *sql.Tx, itemID int64, creators []zotero.Creator) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM itemCreators WHERE itemID = ?`, itemID); err != nil {
		return err
	}
	for i, c := range creators {
		typeID, err := lookupID(ctx, tx, `SELECT creatorTypeID FROM creatorTypes WHERE creatorType = ?`, c.Type)
		if err != nil {
			return err
		}
		if typeID == 0 {
			return errors.NewValidationError("creator_type", c.Type, "unknown Zotero creator type")
		}

		mode, first := 0, c.First
		if c.Single {
			mode, first = 1, ""
		}
		creatorID, err := lookupID(ctx, tx,
			`SELECT creatorID FROM creators WHERE firstName = ? AND lastName = ? AND fieldMode = ?`, first, c.Last, mode)
		if err != nil {
			return err
		}
		if creatorID == 0 {
			creatorID, err = insertID(ctx, tx,
				`INSERT INTO creators (firstName, lastName, fieldMode) VALUES (?, ?, ?)`, first, c.Last, mode)
			if err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO itemCreators (itemID, creatorID, creatorTypeID, orderIndex) VALUES (?, ?, ?, ?)`,
			itemID, creatorID, typeID, i); err != nil {
			return err
		}
	}
	return nil
}

func writeTags(ctx context.Context, tx *sql.Tx, itemID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM itemTags WHERE itemID = ?`, itemID); err != nil {
		return err
	}
	for _, name := range tags {
		tagID, err := lookupID(ctx, tx, `SELECT tagID FROM tags WHERE name = ?`, name)
		if err != nil {
			return err
		}
		if tagID == 0 {
			if tagID, err = insertID(ctx, tx, `INSERT INTO tags (name) VALUES (?)`, name); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO itemTags (itemID, tagID, type) VALUES (?, ?, 0)`, itemID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// touch bumps the modification timestamps and marks the item for sync.
func touch(ctx context.Context, tx *sql.Tx, itemID int64, current string, now time.Time) error {
	next := nextVersion(current, now)
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET dateModified = ?, clientDateModified = ?, synced = 0 WHERE itemID = ?`,
		next, next, itemID)
	return err
}

// nextVersion returns a timestamp strictly after prev. Timestamps have
// second resolution, so two writes within one second step forward by one.
func nextVersion(prev string, now time.Time) string {
	ts := now.UTC().Truncate(time.Second)
	if p, err := time.ParseInLocation(constants.TimeFormatZotero, prev, time.UTC); err == nil && !ts.After(p) {
		ts = p.Add(time.Second)
	}
	return ts.Format(constants.TimeFormatZotero)
}

// formatDate renders a year in Zotero's multipart date form.
func formatDate(year int) string {
	if year == 0 {
		return ""
	}
	return fmt.Sprintf("%04d-00-00 %d", year, year)
}

// lookupID returns the first integer column of the row, or zero when
// there is no row.
func lookupID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func insertID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
