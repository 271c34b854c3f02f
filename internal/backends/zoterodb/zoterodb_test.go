package zoterodb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
)

// schema is the subset of the Zotero schema the repository touches.
const schema = `
CREATE TABLE libraries (libraryID INTEGER PRIMARY KEY, type TEXT NOT NULL, editable INT NOT NULL DEFAULT 1);
CREATE TABLE groups (groupID INTEGER PRIMARY KEY, libraryID INT NOT NULL UNIQUE, name TEXT NOT NULL);
CREATE TABLE itemTypes (itemTypeID INTEGER PRIMARY KEY, typeName TEXT);
CREATE TABLE fields (fieldID INTEGER PRIMARY KEY, fieldName TEXT);
CREATE TABLE creatorTypes (creatorTypeID INTEGER PRIMARY KEY, creatorType TEXT);
CREATE TABLE items (
  itemID INTEGER PRIMARY KEY,
  itemTypeID INT NOT NULL,
  dateAdded TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  dateModified TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  clientDateModified TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  libraryID INT NOT NULL,
  key TEXT NOT NULL,
  version INT NOT NULL DEFAULT 0,
  synced INT NOT NULL DEFAULT 0,
  UNIQUE (libraryID, key)
);
CREATE TABLE itemDataValues (valueID INTEGER PRIMARY KEY, value UNIQUE);
CREATE TABLE itemData (itemID INT, fieldID INT, valueID, PRIMARY KEY (itemID, fieldID));
CREATE TABLE creators (
  creatorID INTEGER PRIMARY KEY,
  firstName TEXT NOT NULL,
  lastName TEXT NOT NULL,
  fieldMode INT,
  UNIQUE (lastName, firstName, fieldMode)
);
CREATE TABLE itemCreators (
  itemID INT NOT NULL,
  creatorID INT NOT NULL,
  creatorTypeID INT NOT NULL DEFAULT 1,
  orderIndex INT NOT NULL DEFAULT 0,
  PRIMARY KEY (itemID, orderIndex)
);
CREATE TABLE tags (tagID INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE);
CREATE TABLE itemTags (itemID INT NOT NULL, tagID INT NOT NULL, type INT NOT NULL, PRIMARY KEY (itemID, tagID));
CREATE TABLE deletedItems (itemID INTEGER PRIMARY KEY, dateDeleted DEFAULT CURRENT_TIMESTAMP NOT NULL);

INSERT INTO libraries VALUES (1, 'user', 1), (2, 'group', 1);
INSERT INTO groups VALUES (4711, 2, 'Review team');
INSERT INTO itemTypes VALUES (1, 'note'), (2, 'book'), (3, 'journalArticle'), (4, 'attachment'), (5, 'conferencePaper');
INSERT INTO fields VALUES (1, 'title'), (2, 'abstractNote'), (3, 'date'), (4, 'url'), (5, 'extra'),
  (6, 'publicationTitle'), (7, 'DOI'), (8, 'publisher'), (9, 'proceedingsTitle');
INSERT INTO creatorTypes VALUES (1, 'author'), (2, 'editor');

INSERT INTO items (itemID, itemTypeID, dateAdded, dateModified, clientDateModified, libraryID, key)
VALUES
  (10, 3, '2020-01-01 10:00:00', '2021-06-01 12:00:00', '2021-06-01 12:00:00', 1, 'AAAA1111'),
  (11, 1, '2020-01-02 10:00:00', '2020-01-02 10:00:00', '2020-01-02 10:00:00', 1, 'NOTE0001'),
  (12, 2, '2020-01-03 10:00:00', '2020-01-03 10:00:00', '2020-01-03 10:00:00', 1, 'BBBB2222'),
  (13, 3, '2020-01-04 10:00:00', '2020-01-04 10:00:00', '2020-01-04 10:00:00', 1, 'TRSH0001'),
  (14, 3, '2020-01-05 10:00:00', '2020-01-05 10:00:00', '2020-01-05 10:00:00', 2, 'GRP00001');
INSERT INTO deletedItems (itemID) VALUES (13);

INSERT INTO itemDataValues VALUES
  (1, 'Deep Learning'), (2, '2015-05-28 May 28, 2015'), (3, 'Nature'), (4, '10.1038/nature14539'),
  (5, 'Pattern Recognition'), (6, 'Springer'), (7, 'Original Date: 2006' || char(10) || 'DOI: 10.1007/978-0-387-45528-0'),
  (8, '2006-00-00 2006'), (9, 'Trashed'), (10, 'Group paper');
INSERT INTO itemData VALUES
  (10, 1, 1), (10, 3, 2), (10, 6, 3), (10, 7, 4),
  (12, 1, 5), (12, 8, 6), (12, 5, 7), (12, 3, 8),
  (13, 1, 9), (14, 1, 10);

INSERT INTO creators VALUES (1, 'Yann', 'LeCun', 0), (2, '', 'Bishop', 1), (3, 'Itor', 'Ed', 0);
INSERT INTO itemCreators VALUES (10, 1, 1, 0), (10, 3, 2, 1), (12, 2, 1, 0);

INSERT INTO tags VALUES (1, 'review:include'), (2, 'ml');
INSERT INTO itemTags VALUES (10, 1, 0), (10, 2, 1);
`

var clock = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zotero.sqlite")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func openTestRepo(t *testing.T, cfg Config) *Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = newTestDB(t)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return clock }
	}
	repo, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "nope.sqlite")})
	assert.True(t, errors.IsBackendUnavailable(err))
}

func TestOpenUnknownGroup(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: newTestDB(t), LibraryType: records.LibraryGroup, LibraryID: "1"})
	assert.True(t, errors.IsNotFound(err))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/reviewer")
	got, err := ExpandPath("")
	require.NoError(t, err)
	assert.Equal(t, "/home/reviewer/Zotero/zotero.sqlite", got)

	got, err = ExpandPath("/data/z.sqlite")
	require.NoError(t, err)
	assert.Equal(t, "/data/z.sqlite", got)
}

func TestListRecords(t *testing.T) {
	repo := openTestRepo(t, Config{})

	all, err := records.ListAll(context.Background(), repo, records.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, all, 2, "notes, trashed and other libraries are left out")

	a := all[0]
	assert.Equal(t, "AAAA1111", a.ID)
	assert.Equal(t, "2021-06-01 12:00:00", a.Version)
	assert.Equal(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC), a.Modified)
	assert.Equal(t, "journalArticle", a.ItemType)
	assert.Equal(t, "Deep Learning", a.Title)
	assert.Equal(t, []string{"LeCun, Yann"}, a.Authors)
	assert.Equal(t, 2015, a.Year)
	assert.Equal(t, "Nature", a.Venue)
	assert.Equal(t, "10.1038/nature14539", a.DOI)
	assert.Equal(t, []string{"review:include", "ml"}, a.Tags)

	b := all[1]
	assert.Equal(t, "Pattern Recognition", b.Title)
	assert.Equal(t, []string{"Bishop"}, b.Authors)
	assert.Equal(t, "Springer", b.Venue)
	assert.Equal(t, "10.1007/978-0-387-45528-0", b.DOI)
	assert.Equal(t, 2006, b.Year)
	assert.Empty(t, b.Tags)
}

func TestListRecordsPaging(t *testing.T) {
	repo := openTestRepo(t, Config{})

	page, err := repo.ListRecords(context.Background(), records.Filter{Limit: 1})
	require.NoError(t, err)
	assert.True(t, page.More)
	assert.Equal(t, 1, page.Next)

	page, err = repo.ListRecords(context.Background(), records.Filter{Limit: 1, Start: 1})
	require.NoError(t, err)
	assert.False(t, page.More)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "BBBB2222", page.Records[0].ID)
}

func TestGroupLibrary(t *testing.T) {
	repo := openTestRepo(t, Config{LibraryType: records.LibraryGroup, LibraryID: "4711"})
	all, err := records.ListAll(context.Background(), repo, records.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Group paper", all[0].Title)
}

func TestCreateRecord(t *testing.T) {
	repo := openTestRepo(t, Config{})
	ctx := context.Background()

	rec, err := repo.CreateRecord(ctx, records.Draft{Fields: records.Fields{
		ItemType: "conferencePaper",
		Title:    "Attention is all you need",
		Authors:  []string{"Vaswani, Ashish", "LeCun, Yann", "ACME Consortium"},
		Year:     2017,
		Venue:    "NeurIPS",
		DOI:      "10.5555/3295222",
		URL:      "https://example.org/attention",
		Tags:     []string{"review:exclude", "ml"},
	}})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 8)
	assert.Equal(t, "2024-03-01 09:30:00", rec.Version)
	assert.Equal(t, "NeurIPS", rec.Venue)
	assert.Equal(t, "10.5555/3295222", rec.DOI)
	assert.Equal(t, 2017, rec.Year)
	assert.Equal(t, []string{"Vaswani, Ashish", "LeCun, Yann", "ACME Consortium"}, rec.Authors)
	assert.Equal(t, []string{"review:exclude", "ml"}, rec.Tags)

	all, err := records.ListAll(ctx, repo, records.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, rec.ID, all[2].ID)

	var creators int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM creators`).Scan(&creators))
	assert.Equal(t, 5, creators, "existing creator rows are reused")
}

func TestCreateRecordUnknownType(t *testing.T) {
	repo := openTestRepo(t, Config{})
	_, err := repo.CreateRecord(context.Background(), records.Draft{Fields: records.Fields{ItemType: "podcast", Title: "x"}})
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdateRecord(t *testing.T) {
	repo := openTestRepo(t, Config{})
	ctx := context.Background()

	title := "Deep learning"
	authors := []string{"LeCun, Y", "Bengio, Y"}
	patch := records.Patch{Title: &title, Authors: &authors, Tags: records.TagsPatch([]string{"ml", "review:exclude"}).Tags}

	rec, err := repo.UpdateRecord(ctx, "AAAA1111", "2021-06-01 12:00:00", patch)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 09:30:00", rec.Version)
	assert.Equal(t, title, rec.Title)
	assert.Equal(t, authors, rec.Authors)
	assert.Equal(t, []string{"ml", "review:exclude"}, rec.Tags)
	assert.Equal(t, 2015, rec.Year, "untouched fields survive")

	var editors, synced int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM itemCreators WHERE itemID = 10 AND creatorTypeID = 2`).Scan(&editors))
	require.NoError(t, repo.db.QueryRow(`SELECT synced FROM items WHERE itemID = 10`).Scan(&synced))
	assert.Equal(t, 1, editors)
	assert.Equal(t, 0, synced)

	_, err = repo.UpdateRecord(ctx, "AAAA1111", "2021-06-01 12:00:00", patch)
	assert.True(t, errors.IsConflict(err))

	_, err = repo.UpdateRecord(ctx, "MISSING1", "x", patch)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateWithinOneSecondBumpsVersion(t *testing.T) {
	repo := openTestRepo(t, Config{})
	ctx := context.Background()

	first, err := repo.UpdateRecord(ctx, "BBBB2222", "2020-01-03 10:00:00", records.TagsPatch([]string{"a"}))
	require.NoError(t, err)
	second, err := repo.UpdateRecord(ctx, "BBBB2222", first.Version, records.TagsPatch([]string{"b"}))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 09:30:00", first.Version)
	assert.Equal(t, "2024-03-01 09:30:01", second.Version)
}

func TestUpdateClearsAndMovesFields(t *testing.T) {
	repo := openTestRepo(t, Config{})
	ctx := context.Background()

	empty := ""
	doi := "10.1/new"
	year := 0
	rec, err := repo.UpdateRecord(ctx, "BBBB2222", "2020-01-03 10:00:00", records.Patch{Venue: &empty, DOI: &doi, Year: &year})
	require.NoError(t, err)
	assert.Empty(t, rec.Venue)
	assert.Equal(t, 0, rec.Year)
	assert.Equal(t, doi, rec.DOI)

	fields, err := readFields(ctx, repo.db, 12)
	require.NoError(t, err)
	assert.Equal(t, "Original Date: 2006\nDOI: 10.1/new", fields["extra"])
}

func TestDeleteRecord(t *testing.T) {
	repo := openTestRepo(t, Config{})
	ctx := context.Background()

	err := repo.DeleteRecord(ctx, "BBBB2222", "stale")
	assert.True(t, errors.IsConflict(err))

	require.NoError(t, repo.DeleteRecord(ctx, "BBBB2222", "2020-01-03 10:00:00"))
	all, err := records.ListAll(ctx, repo, records.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = repo.DeleteRecord(ctx, "BBBB2222", "2020-01-03 10:00:00")
	assert.True(t, errors.IsNotFound(err))
}

func TestReadOnly(t *testing.T) {
	repo := openTestRepo(t, Config{ReadOnly: true})
	ctx := context.Background()

	all, err := records.ListAll(ctx, repo, records.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.CreateRecord(ctx, records.Draft{})
	assert.True(t, errors.IsReadOnly(err))
	_, err = repo.UpdateRecord(ctx, "AAAA1111", "x", records.Patch{})
	assert.True(t, errors.IsReadOnly(err))
	assert.True(t, errors.IsReadOnly(repo.DeleteRecord(ctx, "AAAA1111", "x")))
}

func TestNextVersion(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC)
	assert.Equal(t, "2024-01-01 00:00:00", nextVersion("2023-12-31 23:59:59", now))
	assert.Equal(t, "2024-01-01 00:00:01", nextVersion("2024-01-01 00:00:00", now))
	assert.Equal(t, "2024-01-01 00:00:06", nextVersion("2024-01-01 00:00:05", now), "clock behind the stored value")
	assert.Equal(t, "2024-01-01 00:00:00", nextVersion("garbage", now))
}
