package manifest

import "fmt"

// BuildInvariantError means the builder produced, or was about to produce, an inconsistent graph.
// It always points at a builder or schema bug, never at user input.
type BuildInvariantError struct {
	Rule    string
	Subject string
	Detail  string
}

func (e *BuildInvariantError) Error() string {
	return fmt.Sprintf("manifest invariant %q violated by %s: %s", e.Rule, e.Subject, e.Detail)
}

const (
	RuleIncompleteRecord = "complete-record"
	RuleUnknownService   = "depends-on-target"
	RuleSelfDependency   = "no-self-dependency"
	RuleDependencyCycle  = "acyclic-dependencies"
	RuleUndeclaredVolume = "volume-declared"
	RuleOrphanVolume     = "volume-referenced"
	RuleUndeclaredNet    = "network-declared"
	RuleOrphanNetwork    = "network-referenced"
	RuleDuplicateName    = "unique-names"
	RuleInvalidRef       = "reference-name"
	RuleConflictingRef   = "environment-consistency"
)
