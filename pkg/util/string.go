package util

import (
	"regexp"
	"strings"
)

func TrimStringMiddle(str string, maxLen int, sep string) string {
	if len(str) > maxLen {
		return str[:maxLen/2] + sep + str[len(str)-maxLen/2:]
	}
	return str
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
	nonIdentChars = regexp.MustCompile("[^A-Z0-9_]+")
	shellIdent    = regexp.MustCompile("^[A-Za-z_][A-Za-z0-9_]*$")
)

func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

// ToEnvVariableName turns an arbitrary name into an upper-case shell identifier,
// e.g. "discovery.type" -> "DISCOVERY_TYPE", "open-webui" -> "OPEN_WEBUI".
func ToEnvVariableName(str string) string {
	name := strings.ToUpper(ToSnakeCase(str))
	name = nonIdentChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func IsShellIdentifier(str string) bool {
	return shellIdent.MatchString(str)
}
