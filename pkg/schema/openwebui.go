package schema

import "github.com/samber/lo"

const (
	KeyEnvPlacement       = "env_placement"
	KeyWebUIImage         = "webui_image"
	KeyAppPort            = "app_port"
	KeyDatabase           = "database"
	KeyVectorDB           = "vector_db"
	KeyPostgresPassword   = "postgres_password"
	KeyQdrantAPIKey       = "qdrant_api_key"
	KeyOpenSearchPassword = "opensearch_password"
	KeyRedis              = "redis"
	KeyAuth               = "auth"
	KeyOAuthClientID      = "oauth_client_id"
	KeyOAuthClientSecret  = "oauth_client_secret"
	KeyOpenIDProviderURL  = "openid_provider_url"
	KeyWebUISecretKey     = "webui_secret_key"
	KeyOpenAIAPIKey       = "openai_api_key"
	KeyOllama             = "ollama"
	KeyOllamaBaseURL      = "ollama_base_url"
	KeyReverseProxy       = "reverse_proxy"
	KeyDomain             = "domain"
)

const (
	PlacementEmbedded = "embedded"
	PlacementSeparate = "separate"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	VectorNone       = "none"
	VectorChroma     = "chroma"
	VectorMilvus     = "milvus"
	VectorQdrant     = "qdrant"
	VectorOpenSearch = "opensearch"
	VectorPGVector   = "pgvector"

	AuthDefault  = "default"
	AuthDisabled = "disabled"
	AuthOAuth    = "oauth"

	OllamaNone     = "none"
	OllamaBundled  = "bundled"
	OllamaExternal = "external"

	ProxyNone  = "none"
	ProxyCaddy = "caddy"
)

// PortPattern matches a TCP port from 1 to 65535 without leading zeros.
const PortPattern = `^([1-9][0-9]{0,3}|[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5])$`

// OpenWebUIFields is the fixed decision set for an Open WebUI deployment.
func OpenWebUIFields() []Field {
	return []Field{
		{
			Key:         KeyEnvPlacement,
			Kind:        KindEnum,
			Allowed:     []string{PlacementEmbedded, PlacementSeparate},
			Default:     lo.ToPtr(PlacementEmbedded),
			Question:    "Would you prefer environment variables embedded directly in the Docker Compose file, or in a separate .env.generated file?",
			Description: "where environment values are written: inline in the compose file or in a companion env file",
		},
		{
			Key:         KeyWebUIImage,
			Kind:        KindEnum,
			Allowed:     []string{"main", "cuda"},
			Default:     lo.ToPtr("main"),
			Question:    "Which Open WebUI image do you want: the standard image or the CUDA image for NVIDIA GPUs?",
			Description: "main is the standard image, cuda adds GPU acceleration",
		},
		{
			Key:         KeyAppPort,
			Kind:        KindString,
			Pattern:     PortPattern,
			Default:     lo.ToPtr("3000"),
			Question:    "Which host port should Open WebUI be published on?",
			Description: "host port number mapped to the container port 8080",
		},
		{
			Key:         KeyDatabase,
			Kind:        KindEnum,
			Allowed:     []string{DatabaseSQLite, DatabasePostgres},
			Default:     lo.ToPtr(DatabaseSQLite),
			Question:    "Which database should Open WebUI use: the built-in SQLite or PostgreSQL?",
			Description: "application database backend",
		},
		{
			Key:         KeyVectorDB,
			Kind:        KindEnum,
			Allowed:     []string{VectorNone, VectorChroma, VectorMilvus, VectorQdrant, VectorOpenSearch, VectorPGVector},
			Default:     lo.ToPtr(VectorNone),
			Question:    "Which vector database do you want for RAG: none (built-in), Chroma, Milvus, Qdrant, OpenSearch or PGVector?",
			Description: "vector store for retrieval augmented generation; none keeps the embedded default",
		},
		{
			Key:         KeyPostgresPassword,
			Kind:        KindString,
			Pattern:     `\S`,
			RequiresAny: []Condition{When(KeyDatabase, DatabasePostgres), When(KeyVectorDB, VectorPGVector)},
			Question:    "What password should the PostgreSQL user use? Say 'generate' to keep a generated one.",
			Description: "password of the postgres user",
			Secret:      true,
		},
		{
			Key:         KeyQdrantAPIKey,
			Kind:        KindString,
			Default:     lo.ToPtr(""),
			Requires:    []Condition{When(KeyVectorDB, VectorQdrant)},
			Question:    "Should Qdrant be protected with an API key? Give the key, or leave it empty.",
			Description: "Qdrant API key, empty for none",
			Secret:      true,
		},
		{
			Key:         KeyOpenSearchPassword,
			Kind:        KindString,
			Pattern:     `^.{8,}$`,
			Requires:    []Condition{When(KeyVectorDB, VectorOpenSearch)},
			Question:    "What admin password should OpenSearch use (at least 8 characters)?",
			Description: "OpenSearch initial admin password",
			Secret:      true,
		},
		{
			Key:         KeyRedis,
			Kind:        KindBool,
			Default:     lo.ToPtr(False),
			Question:    "Do you want Redis for websocket support and multi-instance session sharing?",
			Description: "adds a redis service and enables the redis websocket manager",
		},
		{
			Key:         KeyAuth,
			Kind:        KindEnum,
			Allowed:     []string{AuthDefault, AuthDisabled, AuthOAuth},
			Default:     lo.ToPtr(AuthDefault),
			Question:    "How should users authenticate: default local accounts, no authentication (single user), or OAuth/OpenID Connect?",
			Description: "authentication mode",
		},
		{
			Key:         KeyOAuthClientID,
			Kind:        KindString,
			Pattern:     `\S`,
			Requires:    []Condition{When(KeyAuth, AuthOAuth)},
			Question:    "What is the OAuth client ID?",
			Description: "OAuth client identifier",
		},
		{
			Key:         KeyOAuthClientSecret,
			Kind:        KindString,
			Pattern:     `\S`,
			Requires:    []Condition{When(KeyAuth, AuthOAuth)},
			Question:    "What is the OAuth client secret?",
			Description: "OAuth client secret",
			Secret:      true,
		},
		{
			Key:         KeyOpenIDProviderURL,
			Kind:        KindString,
			Pattern:     `^https?://\S+$`,
			Requires:    []Condition{When(KeyAuth, AuthOAuth)},
			Question:    "What is the OpenID Connect discovery URL (.well-known/openid-configuration)?",
			Description: "OpenID provider discovery URL",
		},
		{
			Key:         KeyWebUISecretKey,
			Kind:        KindString,
			Pattern:     `\S`,
			Question:    "Do you want to set your own WEBUI_SECRET_KEY for signing sessions, or keep a generated one?",
			Description: "secret used to sign JWTs and sessions",
			Secret:      true,
		},
		{
			Key:         KeyOpenAIAPIKey,
			Kind:        KindString,
			Default:     lo.ToPtr(""),
			Question:    "Do you want to connect the OpenAI API? Give an API key, or leave it empty to skip.",
			Description: "OpenAI API key for the OpenAI connection, empty to skip",
			Secret:      true,
		},
		{
			Key:         KeyOllama,
			Kind:        KindEnum,
			Allowed:     []string{OllamaNone, OllamaBundled, OllamaExternal},
			Default:     lo.ToPtr(OllamaNone),
			Question:    "Do you want Ollama: none, bundled as a service in this stack, or an external Ollama server?",
			Description: "Ollama integration",
		},
		{
			Key:         KeyOllamaBaseURL,
			Kind:        KindString,
			Pattern:     `^https?://\S+$`,
			Default:     lo.ToPtr("http://host.docker.internal:11434"),
			Requires:    []Condition{When(KeyOllama, OllamaExternal)},
			Question:    "What is the URL of your Ollama server?",
			Description: "base URL of an external Ollama server",
		},
		{
			Key:         KeyReverseProxy,
			Kind:        KindEnum,
			Allowed:     []string{ProxyNone, ProxyCaddy},
			Default:     lo.ToPtr(ProxyNone),
			Question:    "Should Open WebUI sit behind a Caddy reverse proxy with automatic HTTPS?",
			Description: "reverse proxy in front of Open WebUI",
		},
		{
			Key:         KeyDomain,
			Kind:        KindString,
			Pattern:     `^[A-Za-z0-9.-]+$`,
			Default:     lo.ToPtr("localhost"),
			Requires:    []Condition{When(KeyReverseProxy, ProxyCaddy)},
			Question:    "Which domain name will Caddy serve?",
			Description: "public host name served by the reverse proxy",
		},
	}
}

// NewOpenWebUI returns the validated Open WebUI schema.
func NewOpenWebUI() (*Schema, error) {
	return New(OpenWebUIFields()...)
}
