package schema

// Standard table names.
const (
	MessageTable     = "MessageTable"
	FlowRecordTable  = "FlowRecordTable"
	FlowSeriesTable  = "FlowSeriesTable"
	ObjectValueTable = "ObjectValueTable"
)

// Column names the engine refers to directly.
const (
	ColumnMessageTS  = "MessageTS"
	ColumnSource     = "Source"
	ColumnModule     = "Module"
	ColumnObjectID   = "ObjectId"
	ColumnDirection  = "direction_ing"
	ColumnUUID       = "UuidKey"
	ColumnTimestamp  = "T"
	ColumnPackets    = "packets"
	ColumnBytes      = "bytes"
	ColumnSumPackets = "sum(packets)"
	ColumnSumBytes   = "sum(bytes)"
	ColumnAvgPackets = "avg(packets)"
	ColumnAvgBytes   = "avg(bytes)"
	ColumnFlowCount  = "flow_count"
)

// Flow 8-tuple column names, in record payload order.
const (
	ColumnVRouter    = "vrouter"
	ColumnSourceVN   = "sourcevn"
	ColumnDestVN     = "destvn"
	ColumnSourceIP   = "sourceip"
	ColumnDestIP     = "destip"
	ColumnProtocol   = "protocol"
	ColumnSourcePort = "sport"
	ColumnDestPort   = "dport"
)

// Column datatypes.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeLong   = "long"
	TypeDouble = "double"
	TypeUUID   = "uuid"
	TypeIPv4   = "ipv4"
)

// RowTimeInBits is the number of low timestamp bits folded into one storage row.
const RowTimeInBits = 23

// MinGranularity is the shortest time range, in microseconds, a table row key can
// distinguish. No batch is planned shorter than this.
const MinGranularity uint64 = 1 << RowTimeInBits

// DefaultModuleID identifies the query engine's own log entries.
const DefaultModuleID = "QueryEngine"

// Flow directions.
const (
	DirectionEgress  = 0
	DirectionIngress = 1
)

// FlowTupleColumns lists the 8-tuple columns plus direction.
var FlowTupleColumns = []string{
	ColumnVRouter,
	ColumnSourceVN,
	ColumnDestVN,
	ColumnSourceIP,
	ColumnDestIP,
	ColumnProtocol,
	ColumnSourcePort,
	ColumnDestPort,
}

// IsFlowTable reports whether the table stores flow records.
func IsFlowTable(table string) bool {
	return table == FlowRecordTable || table == FlowSeriesTable
}
