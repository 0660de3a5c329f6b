package engine

import (
	"fmt"
	"regexp"
)

// wholeToken matches a config value that is exactly "${name}", with
// nothing else in the string.
var wholeToken = regexp.MustCompile(`^\$\{([\w.-]+)\}$`)

// embeddedToken matches one or more "${name}" occurrences inside a
// larger string.
var embeddedToken = regexp.MustCompile(`\$\{([\w.-]+)\}`)

// substitute resolves spec §4.9's variable substitution rule against a
// node's config: a value that is exactly "${name}" is replaced by
// params[name] with its original type; a value with embedded tokens
// undergoes string interpolation; arrays and objects recurse; a token
// with no matching param survives literally.
func substitute(value interface{}, params map[string]interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if m := wholeToken.FindStringSubmatch(v); m != nil {
			if resolved, ok := params[m[1]]; ok {
				return resolved
			}
			return v
		}
		return embeddedToken.ReplaceAllStringFunc(v, func(token string) string {
			name := embeddedToken.FindStringSubmatch(token)[1]
			if resolved, ok := params[name]; ok {
				return fmt.Sprintf("%v", resolved)
			}
			return token
		})
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = substitute(inner, params)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = substitute(inner, params)
		}
		return out
	default:
		return v
	}
}

// substituteConfig applies substitute to every value of a node's config
// map, returning a new map.
func substituteConfig(config map[string]interface{}, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		out[k] = substitute(v, params)
	}
	return out
}
