package query

import (
	"encoding/json"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Keys of a match object.
const (
	matchName   = "name"
	matchValue  = "value"
	matchValue2 = "value2"
	matchOp     = "op"
)

func newJSONIter(raw string) *jsoniter.Iterator {
	return jsoniter.ParseString(jsoniter.ConfigFastest, raw)
}

// iterError reports a decoding failure. Running out of input is a failure
// too since every clause is a complete JSON document.
func iterError(it *jsoniter.Iterator) error {
	if it.Error == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return it.Error
}

// readArray calls fn for every element of the array at the iterator. It fails
// with a parse error when the next value is not an array.
func readArray(it *jsoniter.Iterator, clause string, fn func(it *jsoniter.Iterator) error) error {
	if it.WhatIsNext() != jsoniter.ArrayValue {
		if err := iterError(it); err != nil {
			return newParseError(clause, "%v", err)
		}
		return newParseError(clause, "expected a JSON array")
	}
	var err error
	it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		err = fn(it)
		return err == nil
	})
	if err != nil {
		return err
	}
	if ierr := iterError(it); ierr != nil {
		return newParseError(clause, "%v", ierr)
	}
	return nil
}

// readDocument reads raw, which must hold exactly one JSON array, calling fn
// for every element.
func readDocument(raw, clause string, fn func(it *jsoniter.Iterator) error) error {
	it := newJSONIter(raw)
	if err := readArray(it, clause, fn); err != nil {
		return err
	}
	// Only whitespace may follow; the iterator reports io.EOF once it runs out.
	it.WhatIsNext()
	if it.Error != io.EOF {
		return newParseError(clause, "unexpected input after the array")
	}
	return nil
}

// readStringArray decodes a JSON array of strings.
func readStringArray(raw, clause string) ([]string, error) {
	var out []string
	err := readDocument(raw, clause, func(it *jsoniter.Iterator) error {
		if it.WhatIsNext() != jsoniter.StringValue {
			return newParseError(clause, "expected an array of strings")
		}
		out = append(out, it.ReadString())
		return nil
	})
	return out, err
}

// rawMatch is a match object before it is validated against a table.
type rawMatch struct {
	name   string
	value  string
	value2 string
	op     int
}

// readMatch decodes one {name, value, op} object. Missing keys are parse
// errors; keys of the wrong JSON type are invalid arguments.
func readMatch(it *jsoniter.Iterator, clause string) (rawMatch, error) {
	var (
		m                        rawMatch
		hasName, hasValue, hasOp bool
		typeErr                  error
	)
	if it.WhatIsNext() != jsoniter.ObjectValue {
		return m, newParseError(clause, "expected a match object")
	}
	for key := it.ReadObject(); key != ""; key = it.ReadObject() {
		switch key {
		case matchName:
			hasName = true
			if it.WhatIsNext() != jsoniter.StringValue {
				typeErr = newInvalidArgumentError(clause, "%q must be a string", matchName)
				it.Skip()
				continue
			}
			m.name = it.ReadString()
		case matchValue, matchValue2:
			if key == matchValue {
				hasValue = true
			}
			v, err := readLiteral(it, clause, key)
			if err != nil {
				typeErr = err
				continue
			}
			if key == matchValue {
				m.value = v
			} else {
				m.value2 = v
			}
		case matchOp:
			hasOp = true
			if it.WhatIsNext() != jsoniter.NumberValue {
				typeErr = newInvalidArgumentError(clause, "%q must be a number", matchOp)
				it.Skip()
				continue
			}
			op, err := strconv.Atoi(string(it.ReadNumber()))
			if err != nil {
				typeErr = newInvalidArgumentError(clause, "%q must be an integer", matchOp)
				continue
			}
			m.op = op
		default:
			it.Skip()
		}
	}
	if err := iterError(it); err != nil {
		return m, newParseError(clause, "%v", err)
	}
	switch {
	case !hasName:
		return m, newParseError(clause, "match object is missing %q", matchName)
	case !hasValue:
		return m, newParseError(clause, "match object is missing %q", matchValue)
	case !hasOp:
		return m, newParseError(clause, "match object is missing %q", matchOp)
	}
	return m, typeErr
}

// readLiteral reads a string or number literal. Numbers are normalised to
// their canonical decimal form.
func readLiteral(it *jsoniter.Iterator, clause, key string) (string, error) {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString(), nil
	case jsoniter.NumberValue:
		return canonicalNumber(it.ReadNumber())
	}
	it.Skip()
	return "", newInvalidArgumentError(clause, "%q must be a string or a number", key)
}

func canonicalNumber(n json.Number) (string, error) {
	s := string(n)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return strconv.FormatUint(u, 10), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", newParseError("literal", "invalid number %q", s)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
