package cassandra

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/storage"
)

// Store reads analytics rows from Cassandra. Every logical table is a CQL
// table partitioned by key and clustered by timestamp.
type Store struct {
	cfg     Config
	catalog *schema.Catalog
	session *gocql.Session
	metrics *metrics
	logger  log.Logger
}

// NewStore connects to the cluster described by cfg.
func NewStore(cfg Config, catalog *schema.Catalog, reg prometheus.Registerer, logger log.Logger) (*Store, error) {
	m := newMetrics(reg)
	session, err := cfg.session(observer{m: m})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{
		cfg:     cfg,
		catalog: catalog,
		session: session,
		metrics: m,
		logger:  logger,
	}, nil
}

func (s *Store) Close() {
	s.session.Close()
}

func (s *Store) Ready(ctx context.Context) error {
	var version string
	err := s.session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(&version)
	return errors.Wrap(err, "cassandra not ready")
}

// CreateTables creates the CQL table behind every catalog table.
func (s *Store) CreateTables(ctx context.Context) error {
	names := []string{schema.MessageTable, schema.FlowRecordTable, schema.FlowSeriesTable, schema.ObjectValueTable}
	names = append(names, s.catalog.ObjectTables()...)
	for _, name := range names {
		if err := s.session.Query(createTableQuery(name)).WithContext(ctx).Exec(); err != nil {
			return errors.Wrapf(err, "creating table %s", name)
		}
	}
	return nil
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key text,
			ts bigint,
			id timeuuid,
			columns map<text, text>,
			PRIMARY KEY (key, ts, id)
		)`, quote(table))
}

func scanQuery(table string) string {
	return fmt.Sprintf("SELECT ts, columns FROM %s WHERE key = ? AND ts >= ? AND ts < ?", quote(table))
}

func quote(ident string) string {
	return strconv.Quote(ident)
}

func (s *Store) Scan(ctx context.Context, req storage.ScanRequest) (storage.RecordIterator, error) {
	tbl, ok := s.catalog.Resolve(req.Table)
	if !ok {
		return nil, errors.Wrap(storage.ErrUnknownTable, req.Table)
	}
	q := s.session.Query(scanQuery(req.Table), req.Key, int64(req.Window.From), int64(req.Window.End)).WithContext(ctx)
	it := q.Iter()
	return &rowIter{
		it:      it,
		scanner: it.Scanner(),
		table:   tbl,
		req:     req,
		flow:    schema.IsFlowTable(req.Table),
		logger:  s.logger,
		rows:    s.metrics.rowsScanned.WithLabelValues(req.Table),
	}, nil
}

type rowIter struct {
	it      *gocql.Iter
	scanner gocql.Scanner
	table   *schema.TableSchema
	req     storage.ScanRequest
	flow    bool
	logger  log.Logger
	rows    prometheus.Counter

	cur storage.Record
	err error
}

func (r *rowIter) Next() bool {
	for r.err == nil && r.scanner.Next() {
		var (
			ts  int64
			raw map[string]string
		)
		if err := r.scanner.Scan(&ts, &raw); err != nil {
			r.err = errors.WithStack(err)
			return false
		}
		r.rows.Inc()
		rec := storage.Record{Timestamp: uint64(ts), Columns: make(map[string]result.Value, len(raw))}
		for name, text := range raw {
			v, err := ParseColumn(r.table.Datatype(name), name, text)
			if err != nil {
				level.Warn(r.logger).Log("msg", "skipping undecodable column", "table", r.req.Table, "column", name, "err", err)
				continue
			}
			rec.Columns[name] = v
		}
		if r.req.Filter != nil && !r.req.Filter.Matches(rec.Columns) {
			continue
		}
		if r.flow {
			rec.Info = storage.FlowInfo(r.req.Shape, rec.Columns)
		}
		r.cur = rec
		return true
	}
	if r.err == nil {
		r.err = errors.WithStack(r.scanner.Err())
	}
	return false
}

func (r *rowIter) At() storage.Record { return r.cur }

func (r *rowIter) Err() error { return r.err }

func (r *rowIter) Close() error {
	return errors.WithStack(r.it.Close())
}

// ParseColumn converts the stored text of a column to a typed value.
func ParseColumn(datatype, name, text string) (result.Value, error) {
	switch name {
	case schema.ColumnUUID:
		datatype = schema.TypeUUID
	case "short_flow":
		datatype = schema.TypeInt
	}
	switch datatype {
	case schema.TypeInt, schema.TypeLong:
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return result.Uint(u), nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return result.Null(), errors.WithStack(err)
		}
		return result.Int(i), nil
	case schema.TypeDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return result.Null(), errors.WithStack(err)
		}
		return result.Double(f), nil
	case schema.TypeUUID:
		id, err := uuid.Parse(text)
		if err != nil {
			return result.Null(), errors.WithStack(err)
		}
		return result.UUID(id), nil
	case schema.TypeIPv4:
		addr, ok := result.ParseIPv4(text)
		if !ok {
			return result.Null(), errors.Errorf("invalid ipv4 address %q", text)
		}
		return result.IPv4(addr), nil
	}
	return result.String(text), nil
}
