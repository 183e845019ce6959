// Package envexpand substitutes environment variable references in templates.
package envexpand

import (
	"os"
	"regexp"
	"strings"
)

// $NAME or ${NAME}; braced names may contain dots. $$ is a literal $.
var reference = regexp.MustCompile(`\$([A-Za-z0-9_]+|\{[A-Za-z0-9_.]+\}|\$)`)

// Expand replaces $KEY and ${KEY} references in template with values from env.
// References without a value in env are left untouched. Substituted values are
// not expanded again. $$ yields a single $.
func Expand(template string, env map[string]string) string {
	if template == "" || !strings.Contains(template, "$") {
		return template
	}
	return reference.ReplaceAllStringFunc(template, func(ref string) string {
		if ref == "$$" {
			return "$"
		}
		key := strings.TrimPrefix(ref, "$")
		key = strings.TrimSuffix(strings.TrimPrefix(key, "{"), "}")
		if value, ok := env[key]; ok {
			return value
		}
		return ref
	})
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Merge returns a new map holding all entries of maps, later maps winning.
func Merge(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
