package manifest

import (
	"github.com/samber/lo"
)

// Binding is one environment variable of a service.
type Binding struct {
	Name  string // variable name inside the container
	Value string
	Field string // schema key governing the binding, orders bindings on render
	Ref   string // external variable name used in separate mode, a valid shell identifier
}

// Mount attaches a named volume to a path inside the container.
type Mount struct {
	Volume string
	Target string
}

// Service is one container service of the graph.
type Service struct {
	Name          string
	Image         string
	ContainerName string
	Restart       string
	Command       []string
	Ports         []string
	Environment   []Binding
	Volumes       []Mount
	Networks      []string
	DependsOn     []string
}

type Volume struct {
	Name string
}

type Network struct {
	Name string
}

// Graph is the complete, closed set of services, volumes and networks of one run.
// It is immutable: accessors return copies.
type Graph struct {
	services []Service
	volumes  []Volume
	networks []Network
}

// Services returns the services in emission order.
func (g *Graph) Services() []Service {
	return lo.Map(g.services, func(s Service, _ int) Service { return s.clone() })
}

func (g *Graph) Service(name string) (Service, bool) {
	s, found := lo.Find(g.services, func(s Service) bool { return s.Name == name })
	if !found {
		return Service{}, false
	}
	return s.clone(), true
}

func (g *Graph) ServiceNames() []string {
	return lo.Map(g.services, func(s Service, _ int) string { return s.Name })
}

func (g *Graph) Volumes() []Volume {
	return append([]Volume(nil), g.volumes...)
}

func (g *Graph) Networks() []Network {
	return append([]Network(nil), g.networks...)
}

func (s Service) clone() Service {
	s.Command = append([]string(nil), s.Command...)
	s.Ports = append([]string(nil), s.Ports...)
	s.Environment = append([]Binding(nil), s.Environment...)
	s.Volumes = append([]Mount(nil), s.Volumes...)
	s.Networks = append([]string(nil), s.Networks...)
	s.DependsOn = append([]string(nil), s.DependsOn...)
	return s
}

// Binding returns the binding of the variable name, if the service has one.
func (s Service) Binding(name string) (Binding, bool) {
	return lo.Find(s.Environment, func(b Binding) bool { return b.Name == name })
}
