package actionfile

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches a scalar node whose *entire* value is "${VAR}" or
// "${VAR:default}" — per spec §6, "embedded substitution within a larger
// string is not supported", so this never matches a value with leading or
// trailing text around the reference.
var envVarPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)(:(.*))?\}$`)

// substituteEnv walks a parsed yaml.Node tree in place, replacing every
// scalar whose whole value matches ${VAR} or ${VAR:default} with the
// environment variable's value (or the default when unset; a variable
// that is set to the empty string substitutes as empty).
func substituteEnv(node *yaml.Node) {
	if node == nil {
		return
	}
	if node.Kind == yaml.ScalarNode {
		if m := envVarPattern.FindStringSubmatch(node.Value); m != nil {
			name, hasDefault, def := m[1], m[2] != "", m[3]
			if v, ok := os.LookupEnv(name); ok {
				node.Value = v
			} else if hasDefault {
				node.Value = def
			}
			// neither set nor defaulted: leave the literal ${VAR} text, which
			// will surface as a validation error downstream rather than
			// silently vanishing.
		}
		return
	}
	for _, child := range node.Content {
		substituteEnv(child)
	}
}
