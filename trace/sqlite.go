//go:build !tinygo

// Package trace records simulated DMA and UART events to SQLite.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/golang/glog"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"stm32zero-go/hal/sim"
)

const defaultBatch = 4096

// Writer buffers events and writes them to a SQLite database in batches.
// It implements sim.Tracer. Record only appends; full batches are written
// by a background goroutine that runs until Close.
type Writer struct {
	mu        sync.Mutex // pending
	pending   []sim.Event
	batchSize int

	dbMu   sync.Mutex // db, stmt and every write through them
	db     *sql.DB
	stmt   *sql.Stmt
	dbName string
	run    string

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
	stop sync.Once
}

var _ sim.Tracer = (*Writer)(nil)

// NewWriter creates a writer for path (without extension). An empty path
// picks a unique name. Buffered events are flushed at exit.
func NewWriter(path string) *Writer {
	w := &Writer{
		dbName:    path,
		run:       xid.New().String(),
		batchSize: defaultBatch,
		kick:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.flusher()
	atexit.Register(func() { w.Close() })
	return w
}

// Init creates the database file, the table and the insert statement.
func (w *Writer) Init() error {
	w.dbMu.Lock()
	defer w.dbMu.Unlock()
	if w.dbName == "" {
		w.dbName = "sio_trace_" + w.run
	}
	filename := w.dbName + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("trace: file %s already exists", filename)
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("trace: open %s: %w", filename, err)
	}
	w.db = db
	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("trace: schema: %w", err)
		}
	}
	w.stmt, err = db.Prepare(`INSERT INTO event (run_id, port, kind, n, pos, err, time) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("trace: prepare: %w", err)
	}
	glog.Infof("trace is collected in %s", filename)
	return nil
}

func (w *Writer) flusher() {
	defer close(w.done)
	for {
		select {
		case <-w.kick:
			if err := w.Flush(); err != nil {
				glog.Errorf("trace: %v", err)
			}
		case <-w.quit:
			return
		}
	}
}

var schema = []string{
	`create table event
	(
		run_id varchar(40)  not null,
		port   varchar(100) not null,
		kind   varchar(20)  not null,
		n      integer      default 0,
		pos    integer      default 0,
		err    varchar(200) default '',
		time   float        not null
	);`,
	`create index event_kind_index on event (kind);`,
	`create index event_port_index on event (port);`,
	`create index event_time_index on event (time);`,
}

// RunID identifies this writer's rows.
func (w *Writer) RunID() string { return w.run }

// Path is the database file name, known after Init.
func (w *Writer) Path() string { return w.dbName + ".sqlite3" }

// Record buffers e and wakes the flusher once a batch is full. It never
// touches the database, so it is safe from simulated interrupt context.
func (w *Writer) Record(e sim.Event) {
	w.mu.Lock()
	w.pending = append(w.pending, e)
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()
	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Buffered is the number of events not yet written.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes all buffered events.
func (w *Writer) Flush() error {
	w.dbMu.Lock()
	defer w.dbMu.Unlock()
	return w.flushLocked()
}

// flushLocked writes the pending batch. dbMu must be held. A failed batch
// is put back in front of events recorded meanwhile.
func (w *Writer) flushLocked() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	err := w.write(batch)
	if err != nil {
		w.mu.Lock()
		w.pending = append(batch, w.pending...)
		w.mu.Unlock()
	}
	return err
}

func (w *Writer) write(batch []sim.Event) error {
	if w.stmt == nil {
		return errors.New("trace: writer not initialised")
	}
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(w.stmt)
	for _, e := range batch {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		t := float64(e.At.UnixNano()) / 1e9
		if _, err := stmt.Exec(w.run, e.Port, e.Kind.String(), e.N, e.Pos, msg, t); err != nil {
			tx.Rollback()
			return fmt.Errorf("trace: insert %s event: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

// Counts flushes and returns the number of rows per event kind for this run.
func (w *Writer) Counts() (map[string]int, error) {
	if err := w.Flush(); err != nil {
		return nil, err
	}
	w.dbMu.Lock()
	defer w.dbMu.Unlock()
	rows, err := w.db.Query(`SELECT kind, count(*) FROM event WHERE run_id = ? GROUP BY kind`, w.run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// Close flushes and closes the database. It is safe to call more than once.
func (w *Writer) Close() error {
	w.stop.Do(func() { close(w.quit) })
	<-w.done
	w.dbMu.Lock()
	defer w.dbMu.Unlock()
	if w.db == nil {
		return nil
	}
	err := w.flushLocked()
	w.stmt.Close()
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	w.db, w.stmt = nil, nil
	return err
}
