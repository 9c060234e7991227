// Package configschema describes the recordlockd config file as JSON Schema.
package configschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/recordlock/pkg/config"
)

// DraftURL is the JSON Schema dialect of generated schemas.
const DraftURL = "https://json-schema.org/draft/2020-12/schema"

// durationPattern accepts Go duration strings such as "30s" or "1h30m".
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var enums = map[string][]any{
	"log.level":       {"debug", "info", "warn", "error"},
	"log.format":      {"json", "text"},
	"locking.source":  {config.PolicySourceFile, config.PolicySourceSQL, config.PolicySourceRedis},
	"database.driver": {config.DatabaseDriverPostgres, config.DatabaseDriverMySQL},
}

// BuildSchema returns the schema of config.Config titled after serviceName.
// Every key has a default, so only a policy's object_name is required.
func BuildSchema(serviceName string) (*jsonschema.Schema, error) {
	configType := reflect.TypeFor[config.Config]()
	schema, err := jsonschema.ForType(configType, &jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[time.Duration](): {Type: "string", Pattern: durationPattern},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}
	useConfigKeys(schema, configType)

	defaults := config.DefaultConfig()
	tree, err := defaultTree(defaults)
	if err != nil {
		return nil, err
	}
	if err := setDefaults(schema, tree); err != nil {
		return nil, err
	}

	for path, values := range enums {
		if node := lookup(schema, path); node != nil {
			node.Enum = values
		}
	}
	if policies := lookup(schema, "locking.policies"); policies != nil && policies.Items != nil {
		policies.Items.Required = []string{"object_name"}
	}

	if serviceName = strings.TrimSpace(serviceName); serviceName == "" {
		serviceName = defaults.Service.Name
	}
	schema.Schema = DraftURL
	schema.Title = serviceName + " Configuration"
	schema.Description = "Configuration file of " + serviceName + "."
	return schema, nil
}

// useConfigKeys renames properties from Go field names to the mapstructure
// keys the loader reads.
func useConfigKeys(schema *jsonschema.Schema, t reflect.Type) {
	switch t.Kind() {
	case reflect.Slice:
		if schema.Items != nil {
			useConfigKeys(schema.Items, t.Elem())
		}
	case reflect.Struct:
		props := make(map[string]*jsonschema.Schema, t.NumField())
		order := make([]string, 0, t.NumField())
		for i := range t.NumField() {
			field := t.Field(i)
			key, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
			prop := schema.Properties[field.Name]
			if key == "" || prop == nil {
				continue
			}
			useConfigKeys(prop, field.Type)
			props[key] = prop
			order = append(order, key)
		}
		schema.Properties = props
		schema.PropertyOrder = order
		schema.Required = nil
	}
}

func defaultTree(cfg *config.Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return tree, nil
}

func setDefaults(schema *jsonschema.Schema, node any) error {
	if schema == nil {
		return nil
	}
	if children, ok := node.(map[string]any); ok {
		for key, child := range children {
			if err := setDefaults(schema.Properties[key], child); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode default: %w", err)
	}
	schema.Default = raw
	return nil
}

func lookup(schema *jsonschema.Schema, path string) *jsonschema.Schema {
	for key := range strings.SplitSeq(path, ".") {
		if schema == nil {
			return nil
		}
		schema = schema.Properties[key]
	}
	return schema
}
