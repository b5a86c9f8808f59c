package schema

import (
	"maps"
	"sort"

	"github.com/samber/lo"
)

// Record maps field keys to canonical values. Booleans are stored as "true"/"false".
type Record map[string]string

func (r Record) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

func (r Record) Set(key, value string) {
	r[key] = value
}

func (r Record) Delete(key string) {
	delete(r, key)
}

// Bool reports whether key is resolved to "true".
func (r Record) Bool(key string) bool {
	return r[key] == True
}

// Clone returns an independent copy; handing a record downstream always goes through Clone.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Keys returns the resolved keys sorted alphabetically.
func (r Record) Keys() []string {
	keys := lo.Keys(r)
	sort.Strings(keys)
	return keys
}

// Missing returns the applicable fields that have no value yet, in declaration order.
func (r Record) Missing(s *Schema) []Field {
	return lo.Filter(s.Applicable(r), func(f Field, _ int) bool {
		_, ok := r[f.Key]
		return !ok
	})
}

// Complete reports whether every applicable field has a concrete value.
func (r Record) Complete(s *Schema) bool {
	return len(r.Missing(s)) == 0
}

// Prune returns a copy without values of fields that are not applicable against r,
// and without keys the schema does not declare.
func (r Record) Prune(s *Schema) Record {
	res := Record{}
	for key, value := range r {
		if s.IsApplicable(key, r) {
			res[key] = value
		}
	}
	return res
}
