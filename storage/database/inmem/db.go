package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/expense"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/user"
)

type tables struct {
	users         map[string]user.User
	guardians     map[string]enrollment.Guardian
	students      map[string]enrollment.Student
	charges       map[string]billing.Charge
	events        []billing.GatewayEvent
	expenses      map[string]expense.Expense
	grades        map[string]grade.Grade
	announcements map[string]announcement.Announcement
}

func newTables() tables {
	return tables{
		users:         make(map[string]user.User),
		guardians:     make(map[string]enrollment.Guardian),
		students:      make(map[string]enrollment.Student),
		charges:       make(map[string]billing.Charge),
		events:        make([]billing.GatewayEvent, 0),
		expenses:      make(map[string]expense.Expense),
		grades:        make(map[string]grade.Grade),
		announcements: make(map[string]announcement.Announcement),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.guardians {
		c.guardians[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.charges {
		c.charges[k] = v
	}
	c.events = append(c.events, t.events...)
	for k, v := range t.expenses {
		c.expenses[k] = v
	}
	for k, v := range t.grades {
		c.grades[k] = v
	}
	for k, v := range t.announcements {
		c.announcements[k] = v
	}
	return c
}

// DB is a process-local store backing the repositories in tests and demos.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	tables
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{tables: newTables()}
}

// InTx runs fn and restores the tables as they were before when it fails.
// Transactions are serialized; repositories ignore the executor they receive.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Truncate empties every table.
func (db *DB) Truncate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}
