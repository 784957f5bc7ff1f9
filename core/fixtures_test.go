package core

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

var dbCounter atomic.Int64

type BaseFixture struct {
	db       *sql.DB
	ctx      context.Context
	tearDown func()
	t        *testing.T
}

// NewBaseFixture opens a fresh in-memory SQLite database and applies the
// migrations. Each fixture gets its own named database so tests do not share
// state.
func NewBaseFixture(t *testing.T) *BaseFixture {
	ctx, cancel := context.WithCancel(context.Background())

	dsn := fmt.Sprintf("file:fixture_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}

	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	return &BaseFixture{
		db:  db,
		ctx: ctx,
		t:   t,
		tearDown: func() {
			cancel()
			db.Close()
		},
	}
}

func seedUsers(ctx context.Context, t *testing.T, userStore UserStore, users ...User) {
	for _, u := range users {
		if err := userStore.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
}
