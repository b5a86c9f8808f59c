package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/compose"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

func buildGraph(choices schema.Record) *manifest.Graph {
	s, err := schema.NewOpenWebUI()
	Expect(err).To(BeNil())

	filler := map[string]string{
		schema.KeyPostgresPassword:   "pa$$ w0rd",
		schema.KeyOpenSearchPassword: "Opensearch-1!",
		schema.KeyOAuthClientID:      "client-id",
		schema.KeyOAuthClientSecret:  "s3cr#t",
		schema.KeyOpenIDProviderURL:  "https://id.example.com/.well-known/openid-configuration",
		schema.KeyWebUISecretKey:     "b5f0c7e2-7f3c-4a61-9d43-3f5e2c1a9b77",
		schema.KeyDomain:             "chat.example.com",
	}
	record := schema.Record{}
	for _, f := range s.Fields() {
		if !s.IsApplicable(f.Key, record) {
			continue
		}
		switch {
		case choices[f.Key] != "":
			record[f.Key] = choices[f.Key]
		case filler[f.Key] != "":
			record[f.Key] = filler[f.Key]
		case f.Default != nil:
			record[f.Key] = *f.Default
		}
	}

	g, err := manifest.NewBuilder(s).Build(record)
	Expect(err).To(BeNil())
	return g
}

var testRecords = map[string]schema.Record{
	"sqlite only": {},
	"postgres and pgvector with redis": {
		schema.KeyDatabase: schema.DatabasePostgres,
		schema.KeyVectorDB: schema.VectorPGVector,
		schema.KeyRedis:    schema.True,
	},
	"qdrant with key": {
		schema.KeyVectorDB:     schema.VectorQdrant,
		schema.KeyQdrantAPIKey: "qdrant-key",
	},
	"opensearch with oauth behind caddy": {
		schema.KeyVectorDB:     schema.VectorOpenSearch,
		schema.KeyAuth:         schema.AuthOAuth,
		schema.KeyReverseProxy: schema.ProxyCaddy,
		schema.KeyOllama:       schema.OllamaBundled,
	},
	"milvus with external ollama": {
		schema.KeyVectorDB:     schema.VectorMilvus,
		schema.KeyOllama:       schema.OllamaExternal,
		schema.KeyOpenAIAPIKey: "sk-test",
	},
	"chroma without auth": {
		schema.KeyVectorDB: schema.VectorChroma,
		schema.KeyAuth:     schema.AuthDisabled,
	},
}

func TestRenderIsDeterministic(t *testing.T) {
	RegisterTestingT(t)

	for name, choices := range testRecords {
		g := buildGraph(choices)
		for _, mode := range []Mode{ModeEmbedded, ModeSeparate} {
			first, err := Render(g, mode)
			Expect(err).To(BeNil())
			second, err := Render(buildGraph(choices), mode)
			Expect(err).To(BeNil())
			Expect(second).To(Equal(first), "%s/%s", name, mode)
		}
	}
}

// Substituting the env file back into the references gives the embedded configuration.
func TestRenderRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, choices := range testRecords {
		t.Run(name, func(t *testing.T) {
			RegisterTestingT(t)
			g := buildGraph(choices)

			embedded, err := Render(g, ModeEmbedded)
			Expect(err).To(BeNil())
			separate, err := Render(g, ModeSeparate)
			Expect(err).To(BeNil())

			embeddedCfg, err := Verify(ctx, embedded)
			Expect(err).To(BeNil(), string(embedded.Manifest))
			separateCfg, err := Verify(ctx, separate)
			Expect(err).To(BeNil(), string(separate.Manifest)+"\n"+string(separate.EnvFile))

			Expect(separateCfg.Environment()).To(Equal(embeddedCfg.Environment()))
			Expect(embeddedCfg.ServiceNames()).To(ConsistOf(g.ServiceNames()))

			// rendering never alters values
			for _, s := range g.Services() {
				loaded := embeddedCfg.Environment()[s.Name]
				Expect(loaded).To(HaveLen(len(s.Environment)))
				for _, b := range s.Environment {
					Expect(loaded).To(HaveKeyWithValue(b.Name, b.Value))
				}
				svc, found := embeddedCfg.Service(s.Name)
				Expect(found).To(BeTrue())
				Expect(svc.Image).To(Equal(s.Image))
			}
		})
	}
}

func TestRenderSeparateQdrant(t *testing.T) {
	RegisterTestingT(t)

	g := buildGraph(schema.Record{schema.KeyVectorDB: schema.VectorQdrant})
	a, err := Render(g, ModeSeparate)
	Expect(err).To(BeNil())

	manifestText := string(a.Manifest)
	envText := string(a.EnvFile)
	Expect(manifestText).To(ContainSubstring("QDRANT_URI: ${QDRANT_URI}"))
	Expect(manifestText).To(ContainSubstring("VECTOR_DB: ${VECTOR_DB}"))
	Expect(manifestText).NotTo(ContainSubstring("http://qdrant:6333"))
	Expect(strings.Count(envText, "QDRANT_URI=")).To(Equal(1))
	Expect(envText).To(ContainSubstring("QDRANT_URI=http://qdrant:6333\n"))
	Expect(envText).To(ContainSubstring("VECTOR_DB=qdrant\n"))
	Expect(manifestText).To(HavePrefix("# Generated by owui-compose"))
	Expect(manifestText).To(ContainSubstring("--env-file .env.generated"))

	Expect(a.Files()).To(HaveLen(2))
	Expect(a.Files()[1].Name).To(Equal(EnvFileName))
}

func TestRenderSeparateListsSharedReferenceOnce(t *testing.T) {
	RegisterTestingT(t)

	g := buildGraph(schema.Record{schema.KeyVectorDB: schema.VectorOpenSearch})
	a, err := Render(g, ModeSeparate)
	Expect(err).To(BeNil())

	env, err := compose.ParseEnvFile(a.EnvFile)
	Expect(err).To(BeNil())
	set, err := g.Environment()
	Expect(err).To(BeNil())
	Expect(env).To(Equal(set.Map()))
	Expect(env).To(HaveKeyWithValue("OPENSEARCH_DISCOVERY_TYPE", "single-node"))
	Expect(string(a.Manifest)).To(ContainSubstring("discovery.type: ${OPENSEARCH_DISCOVERY_TYPE}"))
}

func TestRenderEmbedded(t *testing.T) {
	RegisterTestingT(t)

	g := buildGraph(schema.Record{
		schema.KeyDatabase: schema.DatabasePostgres,
		schema.KeyRedis:    schema.True,
	})
	a, err := Render(g, ModeEmbedded)
	Expect(err).To(BeNil())
	Expect(a.EnvFile).To(BeNil())
	Expect(a.Files()).To(HaveLen(1))

	text := string(a.Manifest)
	Expect(text).To(ContainSubstring("environment placement: embedded"))
	Expect(text).NotTo(ContainSubstring("${"))
	Expect(text).To(ContainSubstring("pa$$$$ w0rd"), "dollars are escaped for compose")

	inOrder := func(parts ...string) {
		last := -1
		for _, p := range parts {
			i := strings.Index(text, p)
			Expect(i).To(BeNumerically(">", last), "%q out of order in\n%s", p, text)
			last = i
		}
	}
	inOrder("\nservices:\n", "\nvolumes:\n", "\nnetworks:\n")
	inOrder("  open-webui:\n", "  postgres:\n", "  redis:\n")
	inOrder("image: ghcr.io/open-webui/open-webui:main", "container_name: open-webui", "restart: unless-stopped",
		"ports:", "environment:", "DATABASE_URL:", "WEBSOCKET_MANAGER:", "WEBUI_SECRET_KEY:",
		"- open-webui:/app/backend/data", "- openwebui", "depends_on:")
	Expect(text).To(ContainSubstring(`- "3000:8080"`))
}

func TestRenderRejectsUnknownMode(t *testing.T) {
	RegisterTestingT(t)

	_, err := Render(buildGraph(schema.Record{}), Mode("inline"))
	var renderErr *RenderError
	Expect(errors.As(err, &renderErr)).To(BeTrue())
	Expect(renderErr.Artifact).To(Equal(ManifestFileName))

	_, err = ParseMode("separate")
	Expect(err).To(BeNil())
}

func TestVerifyRejectsBrokenManifest(t *testing.T) {
	RegisterTestingT(t)

	_, err := Verify(context.Background(), Artifacts{Mode: ModeEmbedded, Manifest: []byte("services: [\n")})
	var renderErr *RenderError
	Expect(errors.As(err, &renderErr)).To(BeTrue())
	Expect(renderErr.Artifact).To(Equal(ManifestFileName))
}

func TestQuoteEnvValue(t *testing.T) {
	RegisterTestingT(t)

	testCases := []struct {
		value  string
		quoted string
	}{
		{value: "plain-value_1.2", quoted: "plain-value_1.2"},
		{value: "postgresql://u:p@postgres:5432/db", quoted: "postgresql://u:p@postgres:5432/db"},
		{value: "", quoted: ""},
		{value: "pa$$ w0rd", quoted: "'pa$$ w0rd'"},
		{value: "s3cr#t", quoted: "'s3cr#t'"},
		{value: "-Xms512m -Xmx512m", quoted: "'-Xms512m -Xmx512m'"},
	}
	for _, tc := range testCases {
		Expect(quoteEnvValue(tc.value)).To(Equal(tc.quoted))

		env, err := compose.ParseEnvFile([]byte("V=" + tc.quoted + "\n"))
		Expect(err).To(BeNil())
		Expect(env["V"]).To(Equal(tc.value), tc.quoted)
	}
}
