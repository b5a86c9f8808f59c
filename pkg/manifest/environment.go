package manifest

import "fmt"

// EnvVar is one external variable of the environment set.
type EnvVar struct {
	Ref   string
	Value string
}

// EnvironmentSet is the deduplicated union of every service binding, keyed by reference name,
// in first-use order.
type EnvironmentSet struct {
	vars  []EnvVar
	index map[string]int
}

func (e EnvironmentSet) Vars() []EnvVar {
	return append([]EnvVar(nil), e.vars...)
}

func (e EnvironmentSet) Len() int {
	return len(e.vars)
}

func (e EnvironmentSet) Get(ref string) (string, bool) {
	i, ok := e.index[ref]
	if !ok {
		return "", false
	}
	return e.vars[i].Value, true
}

// Map returns the set as a plain map, e.g. for interpolation.
func (e EnvironmentSet) Map() map[string]string {
	res := make(map[string]string, len(e.vars))
	for _, v := range e.vars {
		res[v.Ref] = v.Value
	}
	return res
}

// Environment returns the environment set of the graph. Build only hands out graphs whose
// set is consistent, so the error is reserved for graphs assembled by hand.
func (g *Graph) Environment() (EnvironmentSet, error) {
	set := EnvironmentSet{index: map[string]int{}}
	for _, s := range g.services {
		for _, b := range s.Environment {
			if i, exists := set.index[b.Ref]; exists {
				if set.vars[i].Value != b.Value {
					return EnvironmentSet{}, &BuildInvariantError{
						Rule:    RuleConflictingRef,
						Subject: fmt.Sprintf("service %q", s.Name),
						Detail:  fmt.Sprintf("reference %s is bound to two different values", b.Ref),
					}
				}
				continue
			}
			set.index[b.Ref] = len(set.vars)
			set.vars = append(set.vars, EnvVar{Ref: b.Ref, Value: b.Value})
		}
	}
	return set, nil
}
