package qe

import (
	"net/http"
	"reflect"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type yamlTree = map[interface{}]interface{}

// toTree round trips v through YAML so configs compare by their serialized
// keys. Fields tagged `yaml:"-"` drop out.
func toTree(v interface{}) (yamlTree, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling config")
	}
	tree := yamlTree{}
	if err := yaml.Unmarshal(out, tree); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return tree, nil
}

// overrides keeps the entries of cur that are missing from or differ from
// def. Nested sections are compared key by key and empty sections omitted.
func overrides(def, cur yamlTree) yamlTree {
	out := yamlTree{}
	for k, v := range cur {
		d, ok := def[k]
		if !ok {
			out[k] = v
			continue
		}
		if sub, isTree := v.(yamlTree); isTree {
			if dsub, dIsTree := d.(yamlTree); dIsTree {
				if nested := overrides(dsub, sub); len(nested) > 0 {
					out[k] = nested
				}
				continue
			}
		}
		if !reflect.DeepEqual(d, v) {
			out[k] = v
		}
	}
	return out
}

// configHandler serves cfg as YAML. ?mode=defaults serves def instead and
// ?mode=diff serves only the values that differ from def.
func configHandler(cfg, def interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body interface{}
		switch r.URL.Query().Get("mode") {
		case "defaults":
			body = def
		case "diff":
			defTree, err := toTree(def)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			cfgTree, err := toTree(cfg)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			body = overrides(defTree, cfgTree)
		default:
			body = cfg
		}

		out, err := yaml.Marshal(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// Served as text so browsers render it.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(out)
	}
}
