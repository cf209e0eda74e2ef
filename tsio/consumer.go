package tsio

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"strings"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Consumer is the general definition of a writer that records a matched
// tree sequence's tables, whether to text files or to a database,
// mirroring the teacher's DataLogger split between CSVLogger and
// SQLiteLogger.
type Consumer interface {
	// SetBasePath sets the base path the consumer writes under.
	SetBasePath(path string)
	// Init prepares the consumer to accept rows (creating files or
	// tables as needed).
	Init() error
	// WriteNodes records the node table.
	WriteNodes(flags []uint32, time []float64) error
	// WriteEdges records the edge table.
	WriteEdges(left, right, parent, child []int32) error
	// WriteMutations records the mutation table.
	WriteMutations(site, node []int32, derivedState []int8, parent []int32) error
}

// CSVConsumer is a Consumer that writes comma-delimited files.
type CSVConsumer struct {
	nodePath     string
	edgePath     string
	mutationPath string
}

func NewCSVConsumer(basepath string) *CSVConsumer {
	c := new(CSVConsumer)
	c.SetBasePath(basepath)
	return c
}

func (c *CSVConsumer) SetBasePath(basepath string) {
	basepath = strings.TrimSuffix(basepath, ".")
	c.nodePath = basepath + ".nodes.csv"
	c.edgePath = basepath + ".edges.csv"
	c.mutationPath = basepath + ".mutations.csv"
}

func (c *CSVConsumer) Init() error { return nil }

func (c *CSVConsumer) WriteNodes(flags []uint32, time []float64) error {
	const template = "%d,%d,%f\n"
	var b bytes.Buffer
	for id := range flags {
		b.WriteString(fmt.Sprintf(template, id, flags[id], time[id]))
	}
	return NewFile(c.nodePath, b.Bytes())
}

func (c *CSVConsumer) WriteEdges(left, right, parent, child []int32) error {
	const template = "%d,%d,%d,%d,%d\n"
	var b bytes.Buffer
	for i := range left {
		b.WriteString(fmt.Sprintf(template, i, left[i], right[i], parent[i], child[i]))
	}
	return NewFile(c.edgePath, b.Bytes())
}

func (c *CSVConsumer) WriteMutations(site, node []int32, derivedState []int8, parent []int32) error {
	const template = "%d,%d,%d,%d,%d\n"
	var b bytes.Buffer
	for i := range site {
		b.WriteString(fmt.Sprintf(template, i, site[i], node[i], derivedState[i], parent[i]))
	}
	return NewFile(c.mutationPath, b.Bytes())
}

// NewFile creates a new file on the given path, overwriting it if it
// already exists -- unlike the teacher's NewFile, which refuses to
// clobber an existing file, a match run's output is meant to be
// regenerated every invocation.
func NewFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Sync()
}

// SQLiteConsumer is a Consumer that writes to a single SQLite database
// with one table each for nodes, edges, and mutations.
type SQLiteConsumer struct {
	path string
	db   *sql.DB
}

func NewSQLiteConsumer(basepath string) *SQLiteConsumer {
	c := new(SQLiteConsumer)
	c.SetBasePath(basepath)
	return c
}

func (c *SQLiteConsumer) SetBasePath(basepath string) {
	c.path = strings.TrimSuffix(basepath, ".") + ".db"
}

// Init opens the database with write-ahead logging and exclusive
// locking (matching the teacher's OpenSQLiteDBOptimized) and creates the
// three tables, dropping any from a prior run.
func (c *SQLiteConsumer) Init() error {
	db, err := OpenSQLiteDBOptimized(c.path)
	if err != nil {
		return err
	}
	c.db = db
	stmts := []string{
		"drop table if exists node",
		"create table node (id integer not null primary key, flags integer, time real)",
		"drop table if exists edge",
		"create table edge (id integer not null primary key, left integer, right integer, parent integer, child integer)",
		"drop table if exists mutation",
		"create table mutation (id integer not null primary key, site integer, node integer, derived_state integer, parent integer)",
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "preparing table: %s", stmt)
		}
	}
	return nil
}

// OpenSQLiteDBOptimized establishes a database connection using WAL and
// exclusive locking.
func OpenSQLiteDBOptimized(path string) (*sql.DB, error) {
	return OpenSQLiteDB(path, "?_journal=WAL&_locking=EXCLUSIVE&_sync=NORMAL")
}

// OpenSQLiteDB establishes a database connection using the given
// connection string.
func OpenSQLiteDB(path, connectionString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s%s", path, connectionString))
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite database %s", path)
	}
	return db, nil
}

func (c *SQLiteConsumer) WriteNodes(flags []uint32, time []float64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning node transaction")
	}
	stmt, err := tx.Prepare("insert into node(id, flags, time) values (?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing node insert")
	}
	defer stmt.Close()
	for id := range flags {
		if _, err := stmt.Exec(id, flags[id], time[id]); err != nil {
			return errors.Wrap(err, "inserting node row")
		}
	}
	return tx.Commit()
}

func (c *SQLiteConsumer) WriteEdges(left, right, parent, child []int32) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning edge transaction")
	}
	stmt, err := tx.Prepare("insert into edge(id, left, right, parent, child) values (?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing edge insert")
	}
	defer stmt.Close()
	for i := range left {
		if _, err := stmt.Exec(i, left[i], right[i], parent[i], child[i]); err != nil {
			return errors.Wrap(err, "inserting edge row")
		}
	}
	return tx.Commit()
}

func (c *SQLiteConsumer) WriteMutations(site, node []int32, derivedState []int8, parent []int32) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning mutation transaction")
	}
	stmt, err := tx.Prepare("insert into mutation(id, site, node, derived_state, parent) values (?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing mutation insert")
	}
	defer stmt.Close()
	for i := range site {
		if _, err := stmt.Exec(i, site[i], node[i], derivedState[i], parent[i]); err != nil {
			return errors.Wrap(err, "inserting mutation row")
		}
	}
	return tx.Commit()
}
