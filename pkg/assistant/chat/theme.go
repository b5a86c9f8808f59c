package chat

import (
	"sort"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Theme is the color scheme of the interactive session.
type Theme struct {
	Name           string
	Description    string
	AssistantColor *color.Color
	PromptColor    *color.Color
	NoticeColor    *color.Color
	ErrorColor     *color.Color
}

var themes = map[string]*Theme{
	"default": {
		Name:           "default",
		Description:    "cyan questions, green prompt, yellow notices",
		AssistantColor: color.New(color.FgHiCyan),
		PromptColor:    color.New(color.FgHiGreen, color.Bold),
		NoticeColor:    color.New(color.FgHiYellow),
		ErrorColor:     color.New(color.FgHiRed, color.Bold),
	},
	"ocean": {
		Name:           "ocean",
		Description:    "blue questions, cyan prompt",
		AssistantColor: color.New(color.FgHiBlue),
		PromptColor:    color.New(color.FgCyan, color.Bold),
		NoticeColor:    color.New(color.FgHiCyan),
		ErrorColor:     color.New(color.FgRed, color.Bold),
	},
	"monochrome": {
		Name:           "monochrome",
		Description:    "no colors",
		AssistantColor: color.New(color.Reset),
		PromptColor:    color.New(color.Bold),
		NoticeColor:    color.New(color.Reset),
		ErrorColor:     color.New(color.Bold),
	},
}

func DefaultTheme() *Theme {
	return themes["default"]
}

func GetTheme(name string) (*Theme, error) {
	theme, ok := themes[name]
	if !ok {
		return nil, errors.Errorf("unknown theme %q, available: %v", name, ThemeNames())
	}
	return theme, nil
}

func ThemeNames() []string {
	names := lo.Keys(themes)
	sort.Strings(names)
	return names
}
