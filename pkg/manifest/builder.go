package manifest

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/util"
)

const (
	ServiceApp        = "open-webui"
	ServicePostgres   = "postgres"
	ServiceRedis      = "redis"
	ServiceChroma     = "chroma"
	ServiceMilvus     = "milvus"
	ServiceQdrant     = "qdrant"
	ServiceOpenSearch = "opensearch"
	ServiceOllama     = "ollama"
	ServiceCaddy      = "caddy"

	DefaultNetwork = "openwebui"
	RestartPolicy  = "unless-stopped"

	appContainerPort = "8080"
	postgresUser     = "openwebui"
	postgresDatabase = "openwebui"
	openSearchUser   = "admin"
)

// emissionOrder is the order services appear in the manifest.
var emissionOrder = []string{
	ServiceApp, ServicePostgres, ServiceRedis,
	ServiceChroma, ServiceMilvus, ServiceQdrant, ServiceOpenSearch,
	ServiceOllama, ServiceCaddy,
}

// Images are pinned by policy; the record only selects the Open WebUI flavour.
var Images = map[string]string{
	ServiceApp:        "ghcr.io/open-webui/open-webui",
	ServicePostgres:   "postgres:16-alpine",
	ServiceRedis:      "redis:7-alpine",
	ServiceChroma:     "chromadb/chroma:0.5.20",
	ServiceMilvus:     "milvusdb/milvus:v2.4.15",
	ServiceQdrant:     "qdrant/qdrant:v1.12.4",
	ServiceOpenSearch: "opensearchproject/opensearch:2.18.0",
	ServiceOllama:     "ollama/ollama:0.4.7",
	ServiceCaddy:      "caddy:2.8-alpine",
}

const pgvectorImage = "pgvector/pgvector:pg16"

// rule wires one record value into the graph. An empty In matches any resolved value.
type rule struct {
	Field string
	In    []string
	Apply func(a *assembly)
}

// wiring is the complete table of cross-cutting rules, applied in order.
var wiring = []rule{
	{Field: schema.KeyWebUIImage, Apply: func(a *assembly) {
		a.service(ServiceApp).Image = Images[ServiceApp] + ":" + a.value(schema.KeyWebUIImage)
	}},
	{Field: schema.KeyAppPort, Apply: func(a *assembly) {
		if a.value(schema.KeyReverseProxy) != schema.ProxyCaddy {
			app := a.service(ServiceApp)
			app.Ports = append(app.Ports, a.value(schema.KeyAppPort)+":"+appContainerPort)
		}
	}},

	// postgres serves the database role, the vector store role, or both
	{Field: schema.KeyPostgresPassword, Apply: func(a *assembly) {
		pg := a.service(ServicePostgres)
		if a.value(schema.KeyVectorDB) == schema.VectorPGVector {
			pg.Image = pgvectorImage
		}
		a.env(ServicePostgres, schema.KeyPostgresPassword, "POSTGRES_USER", postgresUser)
		a.env(ServicePostgres, schema.KeyPostgresPassword, "POSTGRES_PASSWORD", a.value(schema.KeyPostgresPassword))
		a.env(ServicePostgres, schema.KeyPostgresPassword, "POSTGRES_DB", postgresDatabase)
		a.mount(ServicePostgres, "postgres-data", "/var/lib/postgresql/data")
	}},
	{Field: schema.KeyDatabase, In: []string{schema.DatabasePostgres}, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyDatabase, "DATABASE_URL", a.postgresURL())
	}},

	{Field: schema.KeyVectorDB, In: []string{schema.VectorChroma}, Apply: func(a *assembly) {
		a.service(ServiceChroma)
		a.env(ServiceChroma, schema.KeyVectorDB, "IS_PERSISTENT", "TRUE")
		a.env(ServiceChroma, schema.KeyVectorDB, "ANONYMIZED_TELEMETRY", "FALSE")
		a.mount(ServiceChroma, "chroma-data", "/chroma/chroma")
		a.env(ServiceApp, schema.KeyVectorDB, "VECTOR_DB", schema.VectorChroma)
		a.env(ServiceApp, schema.KeyVectorDB, "CHROMA_HTTP_HOST", ServiceChroma)
		a.env(ServiceApp, schema.KeyVectorDB, "CHROMA_HTTP_PORT", "8000")
	}},
	{Field: schema.KeyVectorDB, In: []string{schema.VectorMilvus}, Apply: func(a *assembly) {
		a.service(ServiceMilvus).Command = []string{"milvus", "run", "standalone"}
		a.env(ServiceMilvus, schema.KeyVectorDB, "ETCD_USE_EMBED", "true")
		a.env(ServiceMilvus, schema.KeyVectorDB, "ETCD_DATA_DIR", "/var/lib/milvus/etcd")
		a.env(ServiceMilvus, schema.KeyVectorDB, "COMMON_STORAGETYPE", "local")
		a.mount(ServiceMilvus, "milvus-data", "/var/lib/milvus")
		a.env(ServiceApp, schema.KeyVectorDB, "VECTOR_DB", schema.VectorMilvus)
		a.env(ServiceApp, schema.KeyVectorDB, "MILVUS_URI", "http://milvus:19530")
	}},
	{Field: schema.KeyVectorDB, In: []string{schema.VectorQdrant}, Apply: func(a *assembly) {
		a.service(ServiceQdrant)
		a.mount(ServiceQdrant, "qdrant-data", "/qdrant/storage")
		a.env(ServiceApp, schema.KeyVectorDB, "VECTOR_DB", schema.VectorQdrant)
		a.env(ServiceApp, schema.KeyVectorDB, "QDRANT_URI", "http://qdrant:6333")
	}},
	{Field: schema.KeyQdrantAPIKey, Apply: func(a *assembly) {
		if key := a.value(schema.KeyQdrantAPIKey); key != "" {
			a.env(ServiceQdrant, schema.KeyQdrantAPIKey, "QDRANT__SERVICE__API_KEY", key)
			a.env(ServiceApp, schema.KeyQdrantAPIKey, "QDRANT_API_KEY", key)
		}
	}},
	{Field: schema.KeyVectorDB, In: []string{schema.VectorOpenSearch}, Apply: func(a *assembly) {
		a.service(ServiceOpenSearch)
		a.env(ServiceOpenSearch, schema.KeyVectorDB, "discovery.type", "single-node")
		a.env(ServiceOpenSearch, schema.KeyVectorDB, "OPENSEARCH_JAVA_OPTS", "-Xms512m -Xmx512m")
		a.mount(ServiceOpenSearch, "opensearch-data", "/usr/share/opensearch/data")
		a.env(ServiceApp, schema.KeyVectorDB, "VECTOR_DB", schema.VectorOpenSearch)
		a.env(ServiceApp, schema.KeyVectorDB, "OPENSEARCH_URI", "https://opensearch:9200")
		a.env(ServiceApp, schema.KeyVectorDB, "OPENSEARCH_USERNAME", openSearchUser)
		a.env(ServiceApp, schema.KeyVectorDB, "OPENSEARCH_SSL", "true")
		a.env(ServiceApp, schema.KeyVectorDB, "OPENSEARCH_CERT_VERIFY", "false")
	}},
	{Field: schema.KeyOpenSearchPassword, Apply: func(a *assembly) {
		pw := a.value(schema.KeyOpenSearchPassword)
		a.env(ServiceOpenSearch, schema.KeyOpenSearchPassword, "OPENSEARCH_INITIAL_ADMIN_PASSWORD", pw)
		a.env(ServiceApp, schema.KeyOpenSearchPassword, "OPENSEARCH_PASSWORD", pw)
	}},
	// pgvector reuses the postgres service, only the app side changes
	{Field: schema.KeyVectorDB, In: []string{schema.VectorPGVector}, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyVectorDB, "VECTOR_DB", schema.VectorPGVector)
		a.env(ServiceApp, schema.KeyVectorDB, "PGVECTOR_DB_URL", a.postgresURL())
		a.env(ServiceApp, schema.KeyVectorDB, "PGVECTOR_CREATE_EXTENSION", "true")
	}},

	{Field: schema.KeyRedis, In: []string{schema.True}, Apply: func(a *assembly) {
		a.service(ServiceRedis)
		a.mount(ServiceRedis, "redis-data", "/data")
		a.env(ServiceApp, schema.KeyRedis, "ENABLE_WEBSOCKET_SUPPORT", "true")
		a.env(ServiceApp, schema.KeyRedis, "WEBSOCKET_MANAGER", "redis")
		a.env(ServiceApp, schema.KeyRedis, "WEBSOCKET_REDIS_URL", "redis://redis:6379/0")
		a.env(ServiceApp, schema.KeyRedis, "REDIS_URL", "redis://redis:6379/0")
	}},

	{Field: schema.KeyAuth, In: []string{schema.AuthDisabled}, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyAuth, "WEBUI_AUTH", "False")
	}},
	{Field: schema.KeyAuth, In: []string{schema.AuthOAuth}, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyAuth, "ENABLE_OAUTH_SIGNUP", "true")
	}},
	{Field: schema.KeyOAuthClientID, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyOAuthClientID, "OAUTH_CLIENT_ID", a.value(schema.KeyOAuthClientID))
	}},
	{Field: schema.KeyOAuthClientSecret, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyOAuthClientSecret, "OAUTH_CLIENT_SECRET", a.value(schema.KeyOAuthClientSecret))
	}},
	{Field: schema.KeyOpenIDProviderURL, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyOpenIDProviderURL, "OPENID_PROVIDER_URL", a.value(schema.KeyOpenIDProviderURL))
	}},

	{Field: schema.KeyWebUISecretKey, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyWebUISecretKey, "WEBUI_SECRET_KEY", a.value(schema.KeyWebUISecretKey))
	}},
	{Field: schema.KeyOpenAIAPIKey, Apply: func(a *assembly) {
		if key := a.value(schema.KeyOpenAIAPIKey); key != "" {
			a.env(ServiceApp, schema.KeyOpenAIAPIKey, "OPENAI_API_KEY", key)
		}
	}},

	{Field: schema.KeyOllama, In: []string{schema.OllamaNone}, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyOllama, "ENABLE_OLLAMA_API", "false")
	}},
	{Field: schema.KeyOllama, In: []string{schema.OllamaBundled}, Apply: func(a *assembly) {
		a.service(ServiceOllama)
		a.mount(ServiceOllama, "ollama", "/root/.ollama")
		a.env(ServiceApp, schema.KeyOllama, "OLLAMA_BASE_URL", "http://ollama:11434")
	}},
	{Field: schema.KeyOllamaBaseURL, Apply: func(a *assembly) {
		a.env(ServiceApp, schema.KeyOllamaBaseURL, "OLLAMA_BASE_URL", a.value(schema.KeyOllamaBaseURL))
	}},

	{Field: schema.KeyReverseProxy, In: []string{schema.ProxyCaddy}, Apply: func(a *assembly) {
		domain := a.value(schema.KeyDomain)
		caddy := a.service(ServiceCaddy)
		caddy.Command = []string{"caddy", "reverse-proxy", "--from", domain, "--to", ServiceApp + ":" + appContainerPort}
		caddy.Ports = []string{"80:80", "443:443"}
		caddy.DependsOn = []string{ServiceApp}
		a.mount(ServiceCaddy, "caddy-data", "/data")
		a.env(ServiceApp, schema.KeyReverseProxy, "WEBUI_URL", "https://"+domain)
	}},
}

// Builder maps a complete record to a manifest graph.
type Builder struct {
	schema *schema.Schema
}

func NewBuilder(s *schema.Schema) *Builder {
	return &Builder{schema: s}
}

// Build is a pure function of record: the graph is assembled privately and only returned
// once it passed Verify, so callers never observe a partial graph.
func (b *Builder) Build(record schema.Record) (*Graph, error) {
	if err := b.checkRecord(record); err != nil {
		return nil, err
	}

	a := &assembly{
		schema:   b.schema,
		record:   record.Prune(b.schema),
		services: map[string]*Service{},
	}
	a.service(ServiceApp)
	for _, r := range wiring {
		value, resolved := a.record[r.Field]
		if resolved && (len(r.In) == 0 || lo.Contains(r.In, value)) {
			r.Apply(a)
		}
	}

	app := a.services[ServiceApp]
	for _, name := range emissionOrder {
		if name == ServiceApp || name == ServiceCaddy {
			continue
		}
		if _, emitted := a.services[name]; emitted {
			app.DependsOn = append(app.DependsOn, name)
		}
	}

	g := a.graph()
	if err := Verify(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *Builder) checkRecord(record schema.Record) error {
	if missing := record.Missing(b.schema); len(missing) > 0 {
		keys := lo.Map(missing, func(f schema.Field, _ int) string { return f.Key })
		return &BuildInvariantError{Rule: RuleIncompleteRecord, Subject: "record", Detail: "missing " + strings.Join(keys, ", ")}
	}
	for _, f := range b.schema.Applicable(record) {
		canonical, err := b.schema.Validate(f.Key, record[f.Key])
		if err != nil || canonical != record[f.Key] {
			return &BuildInvariantError{Rule: RuleIncompleteRecord, Subject: "record", Detail: fmt.Sprintf("value of %s is not canonical", f.Key)}
		}
	}
	return nil
}

// assembly is the mutable state of one Build call.
type assembly struct {
	schema   *schema.Schema
	record   schema.Record
	services map[string]*Service
}

func (a *assembly) value(key string) string {
	return a.record[key]
}

// service returns the named service, creating it with the policy defaults on first use.
func (a *assembly) service(name string) *Service {
	if s, ok := a.services[name]; ok {
		return s
	}
	s := &Service{
		Name:          name,
		Image:         Images[name],
		ContainerName: name,
		Restart:       RestartPolicy,
		Networks:      []string{DefaultNetwork},
	}
	a.services[name] = s
	return s
}

func (a *assembly) env(service, field, name, value string) {
	ref := name
	if !util.IsShellIdentifier(name) {
		ref = util.ToEnvVariableName(service) + "_" + util.ToEnvVariableName(name)
	}
	s := a.service(service)
	s.Environment = append(s.Environment, Binding{Name: name, Value: value, Field: field, Ref: ref})
}

func (a *assembly) mount(service, volume, target string) {
	s := a.service(service)
	s.Volumes = append(s.Volumes, Mount{Volume: volume, Target: target})
}

func (a *assembly) postgresURL() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(postgresUser, a.value(schema.KeyPostgresPassword)),
		Host:   ServicePostgres + ":5432",
		Path:   "/" + postgresDatabase,
	}
	return u.String()
}

// graph freezes the assembly in emission order. Volumes are declared in the order they are
// first mounted; the app data volume is always mounted.
func (a *assembly) graph() *Graph {
	a.service(ServiceApp).Volumes = append([]Mount{{Volume: ServiceApp, Target: "/app/backend/data"}}, a.services[ServiceApp].Volumes...)

	g := &Graph{networks: []Network{{Name: DefaultNetwork}}}
	declared := map[string]bool{}
	for _, name := range emissionOrder {
		s, emitted := a.services[name]
		if !emitted {
			continue
		}
		sort.SliceStable(s.Environment, func(i, j int) bool {
			return a.schema.Index(s.Environment[i].Field) < a.schema.Index(s.Environment[j].Field)
		})
		g.services = append(g.services, s.clone())
		for _, m := range s.Volumes {
			if !declared[m.Volume] {
				declared[m.Volume] = true
				g.volumes = append(g.volumes, Volume{Name: m.Volume})
			}
		}
	}
	return g
}
