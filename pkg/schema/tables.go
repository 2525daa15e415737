package schema

var flowTupleIndexed = []Column{
	{Name: ColumnVRouter, Datatype: TypeString, Indexed: true},
	{Name: ColumnSourceVN, Datatype: TypeString, Indexed: true},
	{Name: ColumnSourceIP, Datatype: TypeIPv4, Indexed: true},
	{Name: ColumnDestVN, Datatype: TypeString, Indexed: true},
	{Name: ColumnDestIP, Datatype: TypeIPv4, Indexed: true},
	{Name: ColumnProtocol, Datatype: TypeInt, Indexed: true},
	{Name: ColumnSourcePort, Datatype: TypeInt, Indexed: true},
	{Name: ColumnDestPort, Datatype: TypeInt, Indexed: true},
	{Name: ColumnDirection, Datatype: TypeInt, Indexed: true},
}

// DefaultTables is the fixed set of standard tables.
var DefaultTables = []TableSchema{
	{
		Name: MessageTable,
		Columns: []Column{
			{Name: ColumnMessageTS, Datatype: TypeLong},
			{Name: ColumnSource, Datatype: TypeString, Indexed: true},
			{Name: ColumnModule, Datatype: TypeString, Indexed: true},
			{Name: "Category", Datatype: TypeString, Indexed: true},
			{Name: "Level", Datatype: TypeInt},
			{Name: "Type", Datatype: TypeInt},
			{Name: "Messagetype", Datatype: TypeString, Indexed: true},
			{Name: "SequenceNum", Datatype: TypeInt},
			{Name: "Context", Datatype: TypeString},
			{Name: "Xmlmessage", Datatype: TypeString},
		},
	},
	{
		Name: FlowRecordTable,
		Columns: append([]Column{
			{Name: ColumnUUID, Datatype: TypeUUID},
		}, append(append([]Column{}, flowTupleIndexed...),
			Column{Name: "setup_time", Datatype: TypeLong},
			Column{Name: "teardown_time", Datatype: TypeLong},
			Column{Name: "agg-bytes", Datatype: TypeLong},
			Column{Name: "agg-packets", Datatype: TypeLong},
		)...),
	},
	{
		Name: FlowSeriesTable,
		Columns: append(append([]Column{}, flowTupleIndexed...),
			Column{Name: ColumnTimestamp, Datatype: TypeLong},
			Column{Name: ColumnPackets, Datatype: TypeLong},
			Column{Name: ColumnBytes, Datatype: TypeLong},
			Column{Name: ColumnSumPackets, Datatype: TypeLong},
			Column{Name: ColumnSumBytes, Datatype: TypeLong},
			Column{Name: ColumnAvgPackets, Datatype: TypeDouble},
			Column{Name: ColumnAvgBytes, Datatype: TypeDouble},
			Column{Name: ColumnFlowCount, Datatype: TypeLong},
		),
	},
	{
		Name: ObjectValueTable,
		Columns: []Column{
			{Name: ColumnTimestamp, Datatype: TypeLong},
			{Name: ColumnObjectID, Datatype: TypeString, Indexed: true},
			{Name: ColumnSource, Datatype: TypeString, Indexed: true},
			{Name: ColumnModule, Datatype: TypeString, Indexed: true},
		},
	},
}

// DefaultObjectTables are the registered object table names.
var DefaultObjectTables = []string{
	"ObjectVNTable",
	"ObjectVMTable",
	"ObjectVRouter",
	"ObjectBgpRouter",
	"ObjectCollectorInfo",
	"ObjectGeneratorInfo",
	"ObjectQueryEngineInfo",
}

// ObjectTableColumns is the schema shared by every object table.
var ObjectTableColumns = []Column{
	{Name: ColumnMessageTS, Datatype: TypeLong},
	{Name: ColumnObjectID, Datatype: TypeString, Indexed: true},
	{Name: ColumnSource, Datatype: TypeString, Indexed: true},
	{Name: ColumnModule, Datatype: TypeString, Indexed: true},
	{Name: "Messagetype", Datatype: TypeString, Indexed: true},
	{Name: "ObjectLog", Datatype: TypeString},
	{Name: "SystemLog", Datatype: TypeString},
}

// Default returns the catalog of the standard and object tables.
func Default() *Catalog {
	return NewCatalog(DefaultTables, DefaultObjectTables, ObjectTableColumns)
}
