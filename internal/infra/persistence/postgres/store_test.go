package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"viewcore/pkg/domain"
)

func TestNewStoreAppliesSchema(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" || dsn != DefaultDSN {
			t.Fatalf("unexpected open(%q, %q)", driverName, dsn)
		}
		return db, nil
	})
	defer restore()

	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if !conn.pinged {
		t.Fatalf("expected ping before schema")
	}
	if len(conn.execs) != 2 {
		t.Fatalf("expected 2 schema statements, got %v", conn.execs)
	}
	if !strings.Contains(conn.execs[0], "payload BYTEA NOT NULL") {
		t.Fatalf("expected BYTEA payload column, got %s", conn.execs[0])
	}
}

func TestStoreUsesNumberedPlaceholders(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(ctx, "postgres://ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	conn.execs = nil
	conn.args = nil

	created := time.Unix(0, 42).UTC()
	if err := store.Put(ctx, domain.SavedView{Key: "k", ViewID: "v", Payload: []byte("p"), CreatedAt: created}); err != nil {
		t.Fatalf("put: %v", err)
	}
	put := conn.execs[0]
	if !strings.Contains(put, "VALUES ($1, $2, $3, $4)") || !strings.Contains(put, "ON CONFLICT (key)") {
		t.Fatalf("unexpected upsert %s", put)
	}
	if got := conn.args[0]; len(got) != 4 || got[3] != int64(42) {
		t.Fatalf("unexpected upsert args %v", got)
	}

	if _, err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.HasSuffix(conn.execs[1], "WHERE key = $1") {
		t.Fatalf("unexpected delete %s", conn.execs[1])
	}

	conn.rows = [][]driver.Value{{"v", []byte("p"), int64(42)}}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ViewID != "v" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected view %+v", got)
	}
	if !strings.HasSuffix(conn.queries[0], "WHERE key = $1") {
		t.Fatalf("unexpected get %s", conn.queries[0])
	}

	conn.rows = nil
	if _, err := store.List(ctx, "v"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(conn.queries[1], "WHERE view_id = $1 ORDER BY key") {
		t.Fatalf("unexpected list %s", conn.queries[1])
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(context.Background(), "postgres://down"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if len(conn.execs) != 0 {
		t.Fatalf("expected no schema statements after failed ping")
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	boom := errors.New("boom")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, boom })
	defer restore()
	if _, err := NewStore(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
}

var stubSeq atomic.Int64

type stubConn struct {
	execs    []string
	args     [][]driver.Value
	queries  []string
	rows     [][]driver.Value
	pinged   bool
	failPing bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *stubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return errors.New("ping fail")
	}
	c.pinged = true
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	vals := make([]driver.Value, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.args = append(c.args, vals)
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.queries = append(c.queries, query)
	cols := strings.Split(strings.TrimPrefix(strings.SplitN(query, " FROM ", 2)[0], "SELECT "), ", ")
	return &stubRows{cols: cols, rows: c.rows}, nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
