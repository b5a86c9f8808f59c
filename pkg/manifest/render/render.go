package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/internal/build"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/compose"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest"
)

type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeSeparate Mode = "separate"
)

const (
	ManifestFileName = "docker-compose.yaml"
	EnvFileName      = ".env.generated"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEmbedded, ModeSeparate:
		return Mode(s), nil
	}
	return "", errors.Errorf("unknown environment placement %q, expected %s or %s", s, ModeEmbedded, ModeSeparate)
}

// Artifacts are the rendered files of one run. EnvFile is nil in embedded mode.
type Artifacts struct {
	Mode     Mode
	Manifest []byte
	EnvFile  []byte
}

// Files returns file name -> content, in writing order.
func (a Artifacts) Files() []File {
	files := []File{{Name: ManifestFileName, Content: a.Manifest}}
	if a.EnvFile != nil {
		files = append(files, File{Name: EnvFileName, Content: a.EnvFile})
	}
	return files
}

type File struct {
	Name    string
	Content []byte
}

// RenderError is fatal and names the artifact that could not be produced.
type RenderError struct {
	Artifact string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Artifact, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Render serializes g. It never changes a value, only where it is written: inline on the
// owning service, or as ${REF} with the value moved to the env file.
func Render(g *manifest.Graph, mode Mode) (Artifacts, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return Artifacts{}, &RenderError{Artifact: ManifestFileName, Err: err}
	}
	env, err := g.Environment()
	if err != nil {
		return Artifacts{}, &RenderError{Artifact: EnvFileName, Err: err}
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{documentNode(g, mode)}}
	doc.Content[0].HeadComment = header(mode)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return Artifacts{}, &RenderError{Artifact: ManifestFileName, Err: err}
	}
	if err := enc.Close(); err != nil {
		return Artifacts{}, &RenderError{Artifact: ManifestFileName, Err: err}
	}

	res := Artifacts{Mode: mode, Manifest: buf.Bytes()}
	if mode == ModeSeparate {
		res.EnvFile = envFile(env)
	}
	return res, nil
}

func header(mode Mode) string {
	lines := []string{fmt.Sprintf("# Generated by owui-compose %s, environment placement: %s.", build.Version, mode)}
	if mode == ModeSeparate {
		lines = append(lines, fmt.Sprintf("# Values live in %s: docker compose --env-file %s up -d", EnvFileName, EnvFileName))
	}
	return strings.Join(lines, "\n")
}

func documentNode(g *manifest.Graph, mode Mode) *yaml.Node {
	services := mapping()
	for _, s := range g.Services() {
		appendPair(services, s.Name, serviceNode(s, mode))
	}
	volumes := mapping()
	for _, v := range g.Volumes() {
		appendPair(volumes, v.Name, emptyMapping())
	}
	networks := mapping()
	for _, n := range g.Networks() {
		appendPair(networks, n.Name, emptyMapping())
	}

	root := mapping()
	appendPair(root, "services", services)
	if len(volumes.Content) > 0 {
		appendPair(root, "volumes", volumes)
	}
	appendPair(root, "networks", networks)
	return root
}

func serviceNode(s manifest.Service, mode Mode) *yaml.Node {
	node := mapping()
	appendPair(node, "image", scalar(s.Image))
	appendPair(node, "container_name", scalar(s.ContainerName))
	appendPair(node, "restart", scalar(s.Restart))
	if len(s.Command) > 0 {
		appendPair(node, "command", sequence(s.Command, yaml.FlowStyle))
	}
	if len(s.Ports) > 0 {
		ports := sequence(s.Ports, 0)
		for _, p := range ports.Content {
			p.Style = yaml.DoubleQuotedStyle
		}
		appendPair(node, "ports", ports)
	}
	if len(s.Environment) > 0 {
		env := mapping()
		for _, b := range s.Environment {
			if mode == ModeSeparate {
				appendPair(env, b.Name, scalar("${"+b.Ref+"}"))
			} else {
				appendPair(env, b.Name, scalar(escape(b.Value)))
			}
		}
		appendPair(node, "environment", env)
	}
	if len(s.Volumes) > 0 {
		mounts := make([]string, 0, len(s.Volumes))
		for _, m := range s.Volumes {
			mounts = append(mounts, m.Volume+":"+m.Target)
		}
		appendPair(node, "volumes", sequence(mounts, 0))
	}
	if len(s.Networks) > 0 {
		appendPair(node, "networks", sequence(s.Networks, 0))
	}
	if len(s.DependsOn) > 0 {
		appendPair(node, "depends_on", sequence(s.DependsOn, 0))
	}
	return node
}

// escape keeps compose interpolation from touching literal values.
func escape(value string) string {
	return strings.ReplaceAll(value, "$", "$$")
}

var plainEnvValue = regexp.MustCompile(`^[A-Za-z0-9_./:@+,=-]*$`)

// envFile lists every reference once, in first-use order.
func envFile(env manifest.EnvironmentSet) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Generated by owui-compose, referenced from " + ManifestFileName + "\n")
	for _, v := range env.Vars() {
		buf.WriteString(v.Ref + "=" + quoteEnvValue(v.Value) + "\n")
	}
	return buf.Bytes()
}

// quoteEnvValue picks a dotenv form that reads back as exactly value.
// Single quoted values are never expanded.
func quoteEnvValue(value string) string {
	switch {
	case plainEnvValue.MatchString(value):
		return value
	case !strings.ContainsAny(value, "'\n\r"):
		return "'" + value + "'"
	default:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "$", `\$`)
		return `"` + r.Replace(value) + `"`
	}
}

// Verify loads the artifacts back the way docker compose would and returns the loaded project.
// A document compose cannot load is a RenderError.
func Verify(ctx context.Context, a Artifacts) (compose.Config, error) {
	var env map[string]string
	if a.Mode == ModeSeparate {
		parsed, err := compose.ParseEnvFile(a.EnvFile)
		if err != nil {
			return compose.Config{}, &RenderError{Artifact: EnvFileName, Err: err}
		}
		env = parsed
	}
	cfg, err := compose.Load(ctx, compose.Source{Filename: ManifestFileName, Content: a.Manifest, Environment: env})
	if err != nil {
		return compose.Config{}, &RenderError{Artifact: ManifestFileName, Err: err}
	}
	return cfg, nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func emptyMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func sequence(values []string, style yaml.Style) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: style}
	for _, v := range values {
		node.Content = append(node.Content, scalar(v))
	}
	return node
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}
