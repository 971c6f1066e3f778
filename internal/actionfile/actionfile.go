// Package actionfile parses Curator's action-file format (spec §6): a YAML
// document with a root `actions:` map keyed by monotonically increasing
// integer ids that determine execution order, each entry naming an action
// kind, options, and a filter chain (or, for `alias`, parallel add/remove
// chains). ${VAR}/${VAR:default} environment-variable substitution runs
// over whole scalar values before the tagged-union action/filter types are
// constructed, per spec §6's "on the whole value of a scalar node" rule.
package actionfile

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/curatorerr"
)

// Entry is one numbered action from the action file, in declared order.
type Entry struct {
	ID          int
	Description string
	Action      action.Action
}

// LoadFile reads and parses the action file at path.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "reading action file "+path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML action-file content into ordered Entry values.
func Parse(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "parsing action file YAML", err)
	}
	substituteEnv(&root)
	if len(root.Content) == 0 {
		return nil, curatorerr.New(curatorerr.ConfigError, "action file is empty")
	}

	actionsNode, err := findMappingValue(root.Content[0], "actions")
	if err != nil {
		return nil, err
	}
	if actionsNode == nil || actionsNode.Kind != yaml.MappingNode || len(actionsNode.Content) == 0 {
		return nil, curatorerr.New(curatorerr.ConfigError, "action file has no actions: map")
	}

	ids := make([]int, 0, len(actionsNode.Content)/2)
	byID := make(map[int]map[string]interface{}, len(actionsNode.Content)/2)
	for i := 0; i+1 < len(actionsNode.Content); i += 2 {
		keyNode, valNode := actionsNode.Content[i], actionsNode.Content[i+1]
		id, err := strconv.Atoi(keyNode.Value)
		if err != nil {
			return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("actions: key %q is not an integer", keyNode.Value))
		}
		var raw interface{}
		if err := valNode.Decode(&raw); err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, fmt.Sprintf("actions.%d", id), err)
		}
		m := asMap(raw)
		if m == nil {
			return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("actions.%d: not a mapping", id))
		}
		ids = append(ids, id)
		byID[id] = m
	}
	sort.Ints(ids)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		m := byID[id]
		act, err := buildAction(m)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, fmt.Sprintf("actions.%d", id), err)
		}
		entries = append(entries, Entry{
			ID:          id,
			Description: getString(m, "description", ""),
			Action:      act,
		})
	}
	return entries, nil
}

// findMappingValue returns the value node for key within a top-level
// mapping node (typically a document's root content node), or nil if the
// document root isn't a mapping or doesn't contain key.
func findMappingValue(doc *yaml.Node, key string) (*yaml.Node, error) {
	if doc.Kind != yaml.MappingNode {
		return nil, curatorerr.New(curatorerr.ConfigError, "action file root is not a mapping")
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			return doc.Content[i+1], nil
		}
	}
	return nil, nil
}
