package schema

import (
	"sort"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Datatype string
	// Indexed columns may be referenced by WHERE predicates.
	Indexed bool
}

// TableSchema is the ordered column list of a table.
type TableSchema struct {
	Name    string
	Columns []Column
}

// Column returns the named column.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Datatype returns the column's datatype, or "" when the column does not exist.
func (t *TableSchema) Datatype(name string) string {
	c, _ := t.Column(name)
	return c.Datatype
}

// IsIndexed reports whether name is an indexed column of the table.
func (t *TableSchema) IsIndexed(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Indexed
}

// Catalog maps table names to schemas. It is built once at startup and is read-only
// afterwards, so it is safe for concurrent use.
type Catalog struct {
	tables       map[string]*TableSchema
	objectTables map[string]*TableSchema
}

// NewCatalog builds a catalog from standard tables and the names of object tables,
// which all share objectColumns.
func NewCatalog(tables []TableSchema, objectTables []string, objectColumns []Column) *Catalog {
	c := &Catalog{
		tables:       make(map[string]*TableSchema, len(tables)),
		objectTables: make(map[string]*TableSchema, len(objectTables)),
	}
	for i := range tables {
		t := tables[i]
		c.tables[t.Name] = &t
	}
	for _, name := range objectTables {
		c.objectTables[name] = &TableSchema{Name: name, Columns: objectColumns}
	}
	return c
}

// LookupTable returns the schema of a standard table.
func (c *Catalog) LookupTable(name string) (*TableSchema, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// LookupObjectTable returns the schema of an object table.
func (c *Catalog) LookupObjectTable(name string) (*TableSchema, bool) {
	t, ok := c.objectTables[name]
	return t, ok
}

// Resolve looks the name up among standard tables first, then among object tables.
func (c *Catalog) Resolve(name string) (*TableSchema, bool) {
	if t, ok := c.LookupTable(name); ok {
		return t, true
	}
	return c.LookupObjectTable(name)
}

// IsObjectTable reports whether name is a registered object table.
func (c *Catalog) IsObjectTable(name string) bool {
	_, ok := c.objectTables[name]
	return ok
}

// ObjectTables returns the sorted object table names.
func (c *Catalog) ObjectTables() []string {
	names := make([]string, 0, len(c.objectTables))
	for name := range c.objectTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
