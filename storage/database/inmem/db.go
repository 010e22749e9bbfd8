package inmemdb

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/reminder"
	"github.com/trezcool/coachdesk/core/student"
)

var errRawSQL = errors.New("inmemdb: raw SQL is not supported")

type (
	// DB keeps every table in memory. It is safe for concurrent use.
	DB struct {
		mu   sync.RWMutex // guards the tables
		txMu sync.Mutex   // serializes transactions

		seq         int64
		order       map[string]int64 // insertion order by row ID
		profiles    map[string]profile.Profile
		students    map[string]student.Student
		assignments map[string]assignment.Assignment
		submissions map[string]assignment.Submission
		reviews     map[string]assignment.Review
		messages    map[string]message.Message
		reminders   map[string]reminder.Reminder
	}

	// tx journals the writes made within a transaction so they can be undone.
	tx struct {
		undo []func()
	}
)

var (
	_ core.Transactor = (*DB)(nil)
	_ core.DBExecutor = (*tx)(nil)
)

func Open() (*DB, error) {
	db := &DB{
		order:       make(map[string]int64),
		profiles:    make(map[string]profile.Profile),
		students:    make(map[string]student.Student),
		assignments: make(map[string]assignment.Assignment),
		submissions: make(map[string]assignment.Submission),
		reviews:     make(map[string]assignment.Review),
		messages:    make(map[string]message.Message),
		reminders:   make(map[string]reminder.Reminder),
	}
	return db, nil
}

// WithinTx runs fn and undoes the writes it made through its executor when it fails.
func (db *DB) WithinTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	t := &tx{}
	if err := fn(t); err != nil {
		db.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		db.mu.Unlock()
		return err
	}
	return nil
}

// journal records undo when the write happens within a transaction. db.mu must be held.
func (db *DB) journal(exec []core.DBExecutor, undo func()) {
	if len(exec) == 0 {
		return
	}
	if t, ok := exec[0].(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// insert records the insertion order of id. db.mu must be held.
func (db *DB) insert(id string) {
	db.seq++
	db.order[id] = db.seq
}

func (t *tx) Exec(string, ...interface{}) (sql.Result, error) { return nil, errRawSQL }
func (t *tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}
func (t *tx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errRawSQL }
func (t *tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errRawSQL
}
func (t *tx) QueryRow(string, ...interface{}) *sql.Row                         { return nil }
func (t *tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

// sortRows orders rows by ords, then by insertion order (newest first unless asc).
func sortRows(ids []string, order map[string]int64, ords []core.DBOrdering, field func(id, name string) interface{}, asc bool) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		for _, ord := range ords {
			c := compare(field(a, ord.Field), field(b, ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		if asc {
			return order[a] < order[b]
		}
		return order[a] > order[b]
	})
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	}
	return 0
}

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
