package compose

import (
	"bytes"
	"context"
	"sort"

	"github.com/compose-spec/compose-go/dotenv"
	"github.com/compose-spec/compose-go/loader"
	"github.com/compose-spec/compose-go/types"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const ProjectName = "open-webui"

// Source is a compose document held in memory together with the variables it interpolates.
type Source struct {
	Filename    string
	Content     []byte
	Environment map[string]string
}

type Config struct {
	Project *types.Project
}

// Load parses and interpolates src the way `docker compose` does, including the consistency
// check of services, volumes and networks.
func Load(ctx context.Context, src Source) (Config, error) {
	var res Config
	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{{
			Filename: src.Filename,
			Content:  src.Content,
		}},
		Environment: lo.Assign(map[string]string{}, src.Environment),
	}, func(options *loader.Options) {
		options.SetProjectName(ProjectName, true)
		options.SkipNormalization = true
	})
	if err != nil {
		return res, errors.Wrapf(err, "failed to load %s", src.Filename)
	}
	res.Project = project
	return res, nil
}

// ParseEnvFile reads KEY=value lines with the dotenv rules compose applies to --env-file.
func ParseEnvFile(content []byte) (map[string]string, error) {
	env, err := dotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse env file")
	}
	return env, nil
}

// ServiceNames returns the project's service names sorted alphabetically.
func (c Config) ServiceNames() []string {
	names := lo.Map(c.Project.Services, func(svc types.ServiceConfig, _ int) string { return svc.Name })
	sort.Strings(names)
	return names
}

func (c Config) Service(name string) (types.ServiceConfig, bool) {
	return lo.Find(c.Project.Services, func(svc types.ServiceConfig) bool {
		return svc.Name == name
	})
}

// Environment returns the effective, interpolated environment of every service.
func (c Config) Environment() map[string]map[string]string {
	res := make(map[string]map[string]string, len(c.Project.Services))
	for _, svc := range c.Project.Services {
		env := make(map[string]string, len(svc.Environment))
		for name, value := range svc.Environment {
			env[name] = lo.FromPtr(value)
		}
		res[svc.Name] = env
	}
	return res
}
