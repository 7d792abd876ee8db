package sqlflow

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/sqlflow/bind"
	"github.com/Konsultn-Engineering/sqlflow/connector"
	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/stream"
)

type pair struct {
	ID       int
	Username string
}

func scanPair(r database.Row) (pair, error) {
	var p pair
	var password string
	err := r.Scan(&p.ID, &p.Username, &password)
	return p, err
}

func scanKey(r database.Row) (int, error) {
	var id int
	err := r.Scan(&id)
	return id, err
}

// newUserDB returns an in-memory database with the USER table seeded with
// two rows. The pool is pinned to one connection so every statement sees
// the same in-memory database.
func newUserDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		"CREATE TABLE USER (ID INTEGER PRIMARY KEY, USERNAME VARCHAR(30) NOT NULL, PASSWORD VARCHAR(30) NOT NULL)",
		"INSERT INTO USER (USERNAME,PASSWORD) VALUES ('thomasnield','password123')",
		"INSERT INTO USER (USERNAME,PASSWORD) VALUES ('bobmarshal','batman43')",
	} {
		_, err := db.ExecContext(t.Context(), stmt)
		require.NoError(t, err)
	}
	return db
}

func TestSelectAll(t *testing.T) {
	src := Pool(newUserDB(t))
	got, err := Many(src.Select("SELECT * FROM USER"), scanPair).Collect(t.Context())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRepeatedNamedParameter(t *testing.T) {
	src := Pool(newUserDB(t))
	got, err := Many(
		src.Select("SELECT * FROM USER WHERE USERNAME LIKE :pattern and PASSWORD LIKE :pattern").
			Named("pattern", "%b%"),
		scanPair,
	).Collect(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []pair{{2, "bobmarshal"}}, got)
}

func TestPositionalParameter(t *testing.T) {
	src := Pool(newUserDB(t))
	got, err := One(src.Select("SELECT * FROM USER WHERE ID = ?").Parameter(2), scanPair).Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, pair{2, "bobmarshal"}, got)
}

func TestNamedParameter(t *testing.T) {
	src := Pool(newUserDB(t))
	got, err := One(src.Select("SELECT * FROM USER WHERE ID = :id").Named("id", 2), scanPair).Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, pair{2, "bobmarshal"}, got)
}

func TestOneWithoutRows(t *testing.T) {
	src := Pool(newUserDB(t))
	_, err := One(src.Select("SELECT * FROM USER WHERE ID = :id").Named("id", 99), scanPair).Get(t.Context())
	assert.ErrorIs(t, err, stream.ErrNoRows)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFlatMapSelect(t *testing.T) {
	src := Pool(newUserDB(t))
	got, err := stream.FlatMap(t.Context(), []int{1, 2}, 0, func(id int) *stream.Future[pair] {
		return One(src.Select("SELECT * FROM USER WHERE ID = :id").Named("id", id), scanPair)
	})
	require.NoError(t, err)
	assert.Equal(t, []pair{{1, "thomasnield"}, {2, "bobmarshal"}}, got)
}

func TestSingleInsert(t *testing.T) {
	src := Pool(newUserDB(t))
	keys, err := Many(
		src.Insert("INSERT INTO USER (USERNAME, PASSWORD) VALUES (:username,:password)").
			Named("username", "josephmarlon").
			Named("password", "coffeesnob43"),
		scanKey,
	).Collect(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int{3}, keys)

	got, err := stream.FlatMap(t.Context(), keys, 1, func(id int) *stream.Future[string] {
		return One(src.Select("SELECT * FROM USER WHERE ID = :id").Named("id", id), func(r database.Row) (string, error) {
			var id int
			var username, password string
			if err := r.Scan(&id, &username, &password); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d %s %s", id, username, password), nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3 josephmarlon coffeesnob43"}, got)
}

func TestMultiInsert(t *testing.T) {
	src := Pool(newUserDB(t))
	users := [][2]string{
		{"josephmarlon", "coffeesnob43"},
		{"samuelfoley", "shiner67"},
		{"emilyearly", "rabbit99"},
	}
	got, err := stream.FlatMap(t.Context(), users, 1, func(u [2]string) *stream.Future[int] {
		return One(
			src.Insert("INSERT INTO USER (USERNAME, PASSWORD) VALUES (:username,:password)").
				NamedParameters(Arg("username", u[0]), Arg("password", u[1])),
			scanKey,
		)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, got)
}

func TestDelete(t *testing.T) {
	src := Pool(newUserDB(t))
	n, err := src.Execute("DELETE FROM USER WHERE ID = :id").Named("id", 2).Run().Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdate(t *testing.T) {
	db := newUserDB(t)
	src := Pool(db)
	n, err := src.Execute("UPDATE USER SET PASSWORD = :password WHERE ID = :id").
		Named("id", 1).
		Named("password", "squirrel56").
		Run().Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var password string
	require.NoError(t, db.QueryRowContext(t.Context(), "SELECT PASSWORD FROM USER WHERE ID = 1").Scan(&password))
	assert.Equal(t, "squirrel56", password)
}

func TestColdReexecution(t *testing.T) {
	src := Pool(newUserDB(t))
	all := Many(src.Select("SELECT * FROM USER"), scanPair)

	first, err := all.Collect(t.Context())
	require.NoError(t, err)
	_, err = src.Execute("INSERT INTO USER (USERNAME, PASSWORD) VALUES (?, ?)").
		Parameter("samuelfoley").Parameter("shiner67").
		Run().Get(t.Context())
	require.NoError(t, err)
	second, err := all.Collect(t.Context())
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Len(t, second, 3)

	del := src.Execute("DELETE FROM USER WHERE ID = :id").Named("id", 3).Run()
	n, err := del.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = del.Get(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPoolReleasesConnection(t *testing.T) {
	db := newUserDB(t)
	src := Pool(db)

	_, err := Many(src.Select("SELECT * FROM USER"), scanPair).Collect(t.Context())
	require.NoError(t, err)
	assert.Zero(t, db.Stats().InUse)

	for p, err := range Many(src.Select("SELECT * FROM USER"), scanPair).Iter(t.Context()) {
		require.NoError(t, err)
		assert.Equal(t, 1, p.ID)
		break
	}
	assert.Zero(t, db.Stats().InUse)

	sub := Many(src.Select("SELECT * FROM USER"), scanPair).Subscribe(t.Context())
	require.True(t, sub.HasNext())
	assert.Equal(t, 1, db.Stats().InUse)
	sub.Cancel()
	assert.Zero(t, db.Stats().InUse)
}

func TestBorrowedConnectionIsNotClosed(t *testing.T) {
	db := newUserDB(t)
	conn, err := db.Conn(t.Context())
	require.NoError(t, err)
	defer conn.Close()

	src := Conn(conn)
	for range 2 {
		got, err := Many(src.Select("SELECT * FROM USER"), scanPair).Collect(t.Context())
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	require.NoError(t, conn.PingContext(t.Context()))
	assert.Equal(t, 1, db.Stats().InUse)
}

func TestTransactionAsBorrowedConnection(t *testing.T) {
	db := newUserDB(t)
	tx, err := db.BeginTx(t.Context(), nil)
	require.NoError(t, err)

	src := Conn(tx)
	_, err = src.Execute("DELETE FROM USER").Run().Get(t.Context())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	got, err := Many(Pool(db).Select("SELECT * FROM USER"), scanPair).Collect(t.Context())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBindCategoriesRoundTrip(t *testing.T) {
	db := newUserDB(t)
	src := Pool(db)
	_, err := src.Execute("CREATE TABLE EVENT (ID TEXT, EVENT_DAY TEXT, CREATED_AT DATETIME, PAYLOAD BLOB, NOTE TEXT)").Run().Get(t.Context())
	require.NoError(t, err)

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	var note *string
	_, err = src.Execute("INSERT INTO EVENT VALUES (:id, :day, :at, :payload, :note)").
		Named("id", id).
		Named("day", bind.Date{Year: 2024, Month: time.March, Day: 1}).
		Named("at", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)).
		Named("payload", []byte{0xde, 0xad}).
		Named("note", note).
		Run().Get(t.Context())
	require.NoError(t, err)

	type event struct {
		ID, Day string
		Payload []byte
		Note    sql.NullString
	}
	got, err := One(src.Select("SELECT ID, EVENT_DAY, PAYLOAD, NOTE FROM EVENT"), func(r database.Row) (event, error) {
		var e event
		err := r.Scan(&e.ID, &e.Day, &e.Payload, &e.Note)
		return e, err
	}).Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, event{ID: id.String(), Day: "2024-03-01", Payload: []byte{0xde, 0xad}}, got)
}

func TestOpen(t *testing.T) {
	src, err := Open(t.Context(), connector.Config{Provider: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "sqlite", src.Dialect().Name())
	require.NotNil(t, src.Connection())

	_, err = src.Execute("CREATE TABLE T (ID INTEGER PRIMARY KEY, NAME TEXT)").Run().Get(t.Context())
	require.NoError(t, err)
	key, err := One(src.Insert("INSERT INTO T (NAME) VALUES (:name)").Named("name", "a"), scanKey).Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, key)

	rows, err := src.Select("SELECT * FROM T").Maps().Collect(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"ID": int64(1), "NAME": "a"}}, rows)
}

func TestOpenMemoryNestedExecutionWaitsForConnection(t *testing.T) {
	src, err := Open(t.Context(), connector.Config{Provider: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	defer src.Close()

	sub := Many(src.Select("SELECT 1"), scanKey).Subscribe(t.Context())
	require.True(t, sub.HasNext())

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = src.Execute("CREATE TABLE T (ID INTEGER)").Run().Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	sub.Cancel()
	_, err = src.Execute("CREATE TABLE T (ID INTEGER)").Run().Get(t.Context())
	require.NoError(t, err)
}

func TestConnAndPoolNeverClose(t *testing.T) {
	assert.NoError(t, Pool(newUserDB(t)).Close())
}
