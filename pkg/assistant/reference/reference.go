package reference

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/docs"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
)

// Source selects the corpus the provider is built from.
type Source string

const (
	SourceStaticBundle   Source = "static-bundle"
	SourceRepositoryDocs Source = "repository-docs"
)

// DefaultRepositoryDocsDir is where a checkout of the open-webui docs repository is expected.
const DefaultRepositoryDocsDir = "repo-docs/open-webui-docs"

const (
	maxChunkChars   = 1500
	maxContextChars = 6000
)

// Sources lists the accepted source names.
func Sources() []string {
	return []string{string(SourceStaticBundle), string(SourceRepositoryDocs)}
}

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceStaticBundle, SourceRepositoryDocs:
		return Source(s), nil
	}
	return "", errors.Errorf("unknown reference source %q (expected one of %s)", s, strings.Join(Sources(), ", "))
}

// Provider supplies documentation text used as grounding context.
type Provider interface {
	// Context returns up to limit passages relevant to query, joined as plain text.
	Context(ctx context.Context, query string, limit int) (string, error)
	Source() Source
	Count() int
}

// Corpus is a Provider backed by an in-memory chromem-go collection.
type Corpus struct {
	source     Source
	collection *chromem.Collection
	log        logger.Logger
}

var _ Provider = (*Corpus)(nil)

// Load builds the corpus for source. For repository-docs the documents are read from dir on fs;
// the static bundle is compiled into the binary and ignores both.
func Load(ctx context.Context, source Source, fs afero.Fs, dir string, log logger.Logger) (*Corpus, error) {
	switch source {
	case SourceStaticBundle:
		return LoadFromFs(ctx, source, afero.FromIOFS{FS: docs.ReferenceBundle}, docs.ReferenceRoot, log)
	case SourceRepositoryDocs:
		if dir == "" {
			dir = DefaultRepositoryDocsDir
		}
		return LoadFromFs(ctx, source, fs, dir, log)
	default:
		return nil, errors.Errorf("unknown reference source %q", source)
	}
}

// LoadFromFs indexes every markdown and yaml document under root.
func LoadFromFs(ctx context.Context, source Source, fs afero.Fs, root string, log logger.Logger) (*Corpus, error) {
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection("openwebui-"+string(source), nil, localEmbedding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create reference collection")
	}
	corpus := &Corpus{source: source, collection: collection, log: log}

	var files []string
	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isReferenceDocument(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read reference documents under %s", root)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no reference documents found under %s", root)
	}
	sort.Strings(files)

	var documents []chromem.Document
	for _, file := range files {
		content, err := afero.ReadFile(fs, file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", file)
		}
		id := filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(file, root), string(filepath.Separator)))
		id = strings.TrimPrefix(id, "/")
		title := extractTitle(string(content))
		if title == "" {
			title = strings.TrimSuffix(path.Base(id), path.Ext(id))
		}
		for i, chunk := range chunkDocument(string(content)) {
			documents = append(documents, chromem.Document{
				ID:      fmt.Sprintf("%s#%d", id, i),
				Content: chunk,
				Metadata: map[string]string{
					"title": title,
					"path":  id,
				},
			})
		}
	}
	if err := collection.AddDocuments(ctx, documents, 1); err != nil {
		return nil, errors.Wrapf(err, "failed to index reference documents")
	}
	log.Debug(ctx, "Loaded %d reference chunks from %d files (%s)", collection.Count(), len(files), source)
	return corpus, nil
}

func (c *Corpus) Source() Source {
	return c.source
}

func (c *Corpus) Count() int {
	return c.collection.Count()
}

func (c *Corpus) Context(ctx context.Context, query string, limit int) (string, error) {
	if limit <= 0 || c.Count() == 0 || strings.TrimSpace(query) == "" {
		return "", nil
	}
	if limit > c.Count() {
		limit = c.Count()
	}
	results, err := c.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return "", errors.Wrapf(err, "reference search failed")
	}
	// equal scores come back in map order
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	var b strings.Builder
	for _, r := range results {
		passage := fmt.Sprintf("--- %s (%s)\n%s\n", r.Metadata["title"], r.Metadata["path"], strings.TrimSpace(r.Content))
		if b.Len()+len(passage) > maxContextChars {
			if b.Len() == 0 {
				b.WriteString(passage[:maxContextChars])
			}
			break
		}
		b.WriteString(passage)
	}
	return b.String(), nil
}

func isReferenceDocument(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".md", ".mdx", ".yaml", ".yml":
		return true
	}
	return false
}

func extractTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// chunkDocument splits on second level headings and caps every chunk at maxChunkChars.
func chunkDocument(content string) []string {
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if strings.TrimSpace(current.String()) != "" {
		sections = append(sections, current.String())
	}

	var chunks []string
	for _, section := range sections {
		for len(section) > maxChunkChars {
			cut := strings.LastIndex(section[:maxChunkChars], "\n")
			if cut <= 0 {
				cut = maxChunkChars
			}
			chunks = append(chunks, section[:cut])
			section = section[cut:]
		}
		if strings.TrimSpace(section) != "" {
			chunks = append(chunks, section)
		}
	}
	return chunks
}
