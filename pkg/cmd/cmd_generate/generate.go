package cmd_generate

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger/color"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/chat"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/config"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/dialogue"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/extraction"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/reference"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/cmd/root_cmd"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest/render"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/output"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

type Params struct {
	ReferenceSource     string
	EnvPlacementDefault string
	OutputDir           string
	Provider            string
	Model               string
	DocsDir             string
	Theme               string
	Show                bool
}

type generateCmd struct {
	root   *root_cmd.RootCmd
	params Params
}

func NewGenerateCmd(rootCmd *root_cmd.RootCmd) *cobra.Command {
	g := &generateCmd{root: rootCmd}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Interview the user and generate an Open WebUI docker compose deployment",
		Long: `Asks about the Open WebUI deployment you want (database, vector store, redis,
authentication, model connections, reverse proxy) and writes docker-compose.yaml, plus
.env.generated when environment values are kept in a separate file.`,
		Example: `  owui-compose generate
  owui-compose generate --env-placement-default separate
  owui-compose generate --reference-source repository-docs --docs-dir ./open-webui-docs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&g.params.ReferenceSource, "reference-source", "", fmt.Sprintf("Reference documentation given to the model: %s (default: %s)",
		strings.Join(reference.Sources(), " | "), reference.SourceStaticBundle))
	flags.StringVar(&g.params.EnvPlacementDefault, "env-placement-default", "", fmt.Sprintf("Default answer for where environment values go: %s | %s (default: %s)",
		render.ModeEmbedded, render.ModeSeparate, render.ModeEmbedded))
	flags.StringVarP(&g.params.OutputDir, "output-dir", "o", "", fmt.Sprintf("Directory the artifacts are written to (default: %s)", output.DefaultDir))
	flags.StringVar(&g.params.Provider, "provider", "", fmt.Sprintf("LLM provider: %s", strings.Join(llm.GlobalRegistry.List(), " | ")))
	flags.StringVarP(&g.params.Model, "model", "m", "", "LLM model name")
	flags.StringVar(&g.params.DocsDir, "docs-dir", "", fmt.Sprintf("Documentation directory for --reference-source %s (default: %s)",
		reference.SourceRepositoryDocs, reference.DefaultRepositoryDocsDir))
	flags.StringVar(&g.params.Theme, "theme", "default", fmt.Sprintf("Color theme: %s", strings.Join(chat.ThemeNames(), " | ")))
	flags.BoolVar(&g.params.Show, "show", false, "Print the generated files after writing them")

	_ = cmd.RegisterFlagCompletionFunc("reference-source", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return reference.Sources(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("env-placement-default", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(render.ModeEmbedded), string(render.ModeSeparate)}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (g *generateCmd) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := g.root.Logger

	cfg, err := config.Load(g.root.Fs, g.root.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.File != "" {
		log.Debug(ctx, "using config file %s", cfg.File)
	}
	theme, err := chat.GetTheme(g.params.Theme)
	if err != nil {
		return err
	}

	s, err := SessionSchema(cfg.EnvPlacement())
	if err != nil {
		return err
	}

	if found, err := cfg.LoadDotEnvAPIKey(g.root.Fs, config.DotEnvFile); err != nil {
		return err
	} else if found {
		log.Debug(ctx, "using the API key from %s", config.DotEnvFile)
	}
	if cfg.APIKey == "" && llm.NeedsAPIKey(cfg.Provider) {
		key, err := chat.ReadSecret(os.Stdin, cmd.OutOrStdout(), fmt.Sprintf("API key for %s: ", cfg.Provider))
		if err != nil {
			return errors.Wrapf(err, "no API key configured for %s (set OWUI_API_KEY, add it to .env or set api_key in the config file)", cfg.Provider)
		}
		cfg.APIKey = key
	}
	llmConfig := llm.DefaultConfig()
	llmConfig.Provider = cfg.Provider
	llmConfig.Model = cfg.Model
	llmConfig.APIKey = cfg.APIKey
	llmConfig.BaseURL = cfg.BaseURL
	llmConfig.Timeout = cfg.Timeout

	askProvider, err := llm.NewConfigured(llmConfig)
	if err != nil {
		return errors.Wrapf(err, "failed to configure %s", cfg.Provider)
	}
	defer func() { _ = askProvider.Close() }()
	llmConfig.JSONMode = true
	extractProvider, err := llm.NewConfigured(llmConfig)
	if err != nil {
		return errors.Wrapf(err, "failed to configure %s", cfg.Provider)
	}
	defer func() { _ = extractProvider.Close() }()

	corpus, err := reference.Load(ctx, cfg.ReferenceSourceValue(), g.root.Fs, cfg.DocsDir, log)
	if err != nil {
		return err
	}
	log.Info(ctx, "loaded %d reference passages from %s using %s (%s)", corpus.Count(), corpus.Source(), cfg.Provider, askProvider.GetModel())

	controller := dialogue.New(s,
		extraction.New(s, extractProvider, extraction.WithLogger(log)),
		dialogue.WithAsker(dialogue.NewModelAsker(askProvider, corpus, log)),
		dialogue.WithLogger(log),
		dialogue.WithRetryBudget(cfg.RetryBudget),
	)
	input := chat.NewLineReader(os.Stdin, cmd.OutOrStdout())
	defer func() { _ = input.Close() }()

	record, err := chat.NewSession(controller, input, cmd.OutOrStdout(), theme).Run(ctx)
	if err != nil {
		return err
	}

	writer := output.NewWriter(g.root.Fs, cfg.OutputDir, log)
	artifacts, written, err := Emit(ctx, s, record, writer)
	if err != nil {
		return err
	}
	report(cmd.OutOrStdout(), artifacts, written, writer.Dir(), g.params.Show)
	return nil
}

// SessionSchema is the Open WebUI schema with the defaults of this run: freshly generated
// secrets and the configured environment placement.
func SessionSchema(placement render.Mode) (*schema.Schema, error) {
	base, err := schema.NewOpenWebUI()
	if err != nil {
		return nil, err
	}
	return base.WithDefaults(map[string]string{
		schema.KeyEnvPlacement:       string(placement),
		schema.KeyWebUISecretKey:     uuid.NewString(),
		schema.KeyPostgresPassword:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		schema.KeyOpenSearchPassword: "Owui-" + uuid.NewString(),
	})
}

// Emit turns a resolved record into files. Nothing is written unless the graph builds, the
// artifacts render and compose can load them back.
func Emit(ctx context.Context, s *schema.Schema, record schema.Record, w *output.Writer) (render.Artifacts, []string, error) {
	g, err := manifest.NewBuilder(s).Build(record)
	if err != nil {
		return render.Artifacts{}, nil, err
	}
	mode, err := render.ParseMode(record[schema.KeyEnvPlacement])
	if err != nil {
		return render.Artifacts{}, nil, &render.RenderError{Artifact: render.ManifestFileName, Err: err}
	}
	artifacts, err := render.Render(g, mode)
	if err != nil {
		return render.Artifacts{}, nil, err
	}
	if _, err := render.Verify(ctx, artifacts); err != nil {
		return render.Artifacts{}, nil, err
	}
	written, err := w.Write(ctx, artifacts)
	if err != nil {
		return render.Artifacts{}, nil, err
	}
	return artifacts, written, nil
}

func report(out io.Writer, a render.Artifacts, written []string, dir string, show bool) {
	for _, path := range written {
		_, _ = fmt.Fprintln(out, color.GreenFmt("wrote %s", path))
	}
	start := "docker compose up -d"
	if a.Mode == render.ModeSeparate {
		start = fmt.Sprintf("docker compose --env-file %s up -d", render.EnvFileName)
	}
	_, _ = fmt.Fprintf(out, "Start it with: cd %s && %s\n", dir, start)
	if show {
		for _, f := range a.Files() {
			_, _ = fmt.Fprintln(out, color.CyanFmt("--- %s", f.Name))
			_, _ = out.Write(f.Content)
		}
	}
}
