package evalset

import (
	"fmt"
	"os"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/model"
	"gopkg.in/yaml.v3"
)

// readYAML accepts a list of {vendor, tier} items (bare strings allowed) or
// a vendor: tier mapping. A null tier falls back to the default.
func readYAML(path string) ([]sourceEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrUnreadableInput, path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedEvalSet, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return readSequence(root)
	case yaml.MappingNode:
		return readMapping(root)
	default:
		return nil, fmt.Errorf("%w: expected a list or mapping at line %d", common.ErrMalformedEvalSet, root.Line)
	}
}

func readSequence(root *yaml.Node) ([]sourceEntry, error) {
	entries := make([]sourceEntry, 0, len(root.Content))
	for _, item := range root.Content {
		if item.Kind == yaml.ScalarNode {
			entries = append(entries, sourceEntry{Vendor: item.Value, Line: item.Line})
			continue
		}

		var e struct {
			Tier   *model.Tier `yaml:"tier"`
			Vendor string      `yaml:"vendor"`
		}
		if err := item.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", common.ErrMalformedEvalSet, item.Line, err)
		}
		entries = append(entries, sourceEntry{Vendor: e.Vendor, Tier: e.Tier, Line: item.Line})
	}
	return entries, nil
}

func readMapping(root *yaml.Node) ([]sourceEntry, error) {
	entries := make([]sourceEntry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		e := sourceEntry{Vendor: key.Value, Line: key.Line}

		if value.Tag != "!!null" && value.Value != "" {
			var tier model.Tier
			if err := value.Decode(&tier); err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", common.ErrMalformedEvalSet, value.Line, err)
			}
			e.Tier = &tier
		}
		entries = append(entries, e)
	}
	return entries, nil
}
