package query

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/vizd/qe/pkg/schema"
)

const clauseWhere = "where"

// parseWhere decodes the WHERE clause: a JSON array of AND-arrays of match
// objects. An empty clause matches everything.
func parseWhere(raw string) (PredicateSet, error) {
	var set PredicateSet
	if raw == "" {
		return set, nil
	}
	err := readDocument(raw, clauseWhere, func(it *jsoniter.Iterator) error {
		var group []Predicate
		err := readArray(it, clauseWhere, func(it *jsoniter.Iterator) error {
			m, err := readMatch(it, clauseWhere)
			if err != nil {
				return err
			}
			p, err := newPredicate(m, clauseWhere)
			if err != nil {
				return err
			}
			group = append(group, p)
			return nil
		})
		if err != nil {
			return err
		}
		if len(group) > 0 {
			set.Groups = append(set.Groups, group)
		}
		return nil
	})
	return set, err
}

// validateWhere requires every WHERE field to be an indexed column of tbl.
func validateWhere(set PredicateSet, tbl *schema.TableSchema) error {
	for _, g := range set.Groups {
		for _, p := range g {
			if _, ok := tbl.Column(p.Name); !ok {
				return newInvalidArgumentError(clauseWhere, "unknown field %q for table %s", p.Name, tbl.Name)
			}
			if !tbl.IsIndexed(p.Name) {
				return newInvalidArgumentError(clauseWhere, "field %q of table %s is not indexed", p.Name, tbl.Name)
			}
		}
	}
	return nil
}
