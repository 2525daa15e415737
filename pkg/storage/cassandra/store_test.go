package cassandra

import (
	"flag"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
)

func TestParseColumn(t *testing.T) {
	id := uuid.New()
	for _, tc := range []struct {
		name     string
		datatype string
		column   string
		text     string
		want     result.Value
		wantErr  bool
	}{
		{name: "long", datatype: schema.TypeLong, column: "bytes", text: "1500", want: result.Uint(1500)},
		{name: "negative int", datatype: schema.TypeInt, column: "Level", text: "-3", want: result.Int(-3)},
		{name: "double", datatype: schema.TypeDouble, column: "avg(bytes)", text: "2.5", want: result.Double(2.5)},
		{name: "uuid column", datatype: "", column: schema.ColumnUUID, text: id.String(), want: result.UUID(id)},
		{name: "dotted ipv4", datatype: schema.TypeIPv4, column: "sourceip", text: "10.0.0.1", want: result.IPv4(0x0a000001)},
		{name: "numeric ipv4", datatype: schema.TypeIPv4, column: "destip", text: "167772162", want: result.IPv4(167772162)},
		{name: "string", datatype: schema.TypeString, column: "Source", text: "node-1", want: result.String("node-1")},
		{name: "bad long", datatype: schema.TypeLong, column: "bytes", text: "x", wantErr: true},
		{name: "bad ipv4", datatype: schema.TypeIPv4, column: "sourceip", text: "::1", wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseColumn(tc.datatype, tc.column, tc.text)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.want.Equal(v), "want %v got %v", tc.want, v)
		})
	}
}

func TestQueries(t *testing.T) {
	require.Equal(t, `SELECT ts, columns FROM "FlowSeriesTable" WHERE key = ? AND ts >= ? AND ts < ?`, scanQuery(schema.FlowSeriesTable))
	require.Contains(t, createTableQuery("ObjectVNTable"), `CREATE TABLE IF NOT EXISTS "ObjectVNTable"`)
	require.Equal(t, "SELECT", operation("  SELECT ts FROM x"))
	require.Equal(t, "UNKNOWN", operation(""))
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.Error(t, cfg.Validate())

	cfg.Addresses = "cass-1, cass-2"
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"cass-1", "cass-2"}, cfg.hosts())

	cfg.Consistency = "SOMETIMES"
	require.Error(t, cfg.Validate())
}
