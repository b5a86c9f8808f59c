package manifest

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/util"
)

// Verify asserts referential closure of g: every depends-on, volume and network a service
// references is declared, every declared volume and network is referenced, no name is declared
// twice, dependencies are acyclic and no two bindings give one reference different values.
func Verify(g *Graph) error {
	services := map[string]Service{}
	for _, s := range g.services {
		if _, dup := services[s.Name]; dup {
			return &BuildInvariantError{Rule: RuleDuplicateName, Subject: fmt.Sprintf("service %q", s.Name), Detail: "declared twice"}
		}
		services[s.Name] = s
	}
	volumes := map[string]bool{}
	for _, v := range g.volumes {
		if volumes[v.Name] {
			return &BuildInvariantError{Rule: RuleDuplicateName, Subject: fmt.Sprintf("volume %q", v.Name), Detail: "declared twice"}
		}
		volumes[v.Name] = true
	}
	networks := map[string]bool{}
	for _, n := range g.networks {
		if networks[n.Name] {
			return &BuildInvariantError{Rule: RuleDuplicateName, Subject: fmt.Sprintf("network %q", n.Name), Detail: "declared twice"}
		}
		networks[n.Name] = true
	}

	usedVolumes := map[string]bool{}
	usedNetworks := map[string]bool{}
	for _, s := range g.services {
		subject := fmt.Sprintf("service %q", s.Name)
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return &BuildInvariantError{Rule: RuleSelfDependency, Subject: subject, Detail: "depends on itself"}
			}
			if _, ok := services[dep]; !ok {
				return &BuildInvariantError{Rule: RuleUnknownService, Subject: subject, Detail: fmt.Sprintf("depends on undeclared service %q", dep)}
			}
		}
		for _, m := range s.Volumes {
			if !volumes[m.Volume] {
				return &BuildInvariantError{Rule: RuleUndeclaredVolume, Subject: subject, Detail: fmt.Sprintf("mounts undeclared volume %q", m.Volume)}
			}
			usedVolumes[m.Volume] = true
		}
		for _, n := range s.Networks {
			if !networks[n] {
				return &BuildInvariantError{Rule: RuleUndeclaredNet, Subject: subject, Detail: fmt.Sprintf("joins undeclared network %q", n)}
			}
			usedNetworks[n] = true
		}
		for _, b := range s.Environment {
			if !util.IsShellIdentifier(b.Ref) {
				return &BuildInvariantError{Rule: RuleInvalidRef, Subject: subject, Detail: fmt.Sprintf("binding %s has reference name %q", b.Name, b.Ref)}
			}
		}
	}
	for _, v := range g.volumes {
		if !usedVolumes[v.Name] {
			return &BuildInvariantError{Rule: RuleOrphanVolume, Subject: fmt.Sprintf("volume %q", v.Name), Detail: "not mounted by any service"}
		}
	}
	for _, n := range g.networks {
		if !usedNetworks[n.Name] {
			return &BuildInvariantError{Rule: RuleOrphanNetwork, Subject: fmt.Sprintf("network %q", n.Name), Detail: "not joined by any service"}
		}
	}

	if cycle := findDependencyCycle(g.services); cycle != nil {
		return &BuildInvariantError{Rule: RuleDependencyCycle, Subject: fmt.Sprintf("service %q", cycle[0]), Detail: strings.Join(cycle, " -> ")}
	}

	_, err := g.Environment()
	return err
}

// findDependencyCycle walks depends-on edges depth first, tracking the recursion stack.
func findDependencyCycle(services []Service) []string {
	edges := map[string][]string{}
	for _, s := range services {
		edges[s.Name] = s.DependsOn
	}
	visited := map[string]bool{}
	onStack := map[string]bool{}
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		visited[name] = true
		onStack[name] = true
		stack = append(stack, name)
		for _, dep := range edges[name] {
			if onStack[dep] {
				start := lo.IndexOf(stack, dep)
				return append(append([]string{}, stack[start:]...), dep)
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		onStack[name] = false
		return nil
	}

	for _, s := range services {
		if !visited[s.Name] {
			if cycle := visit(s.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
