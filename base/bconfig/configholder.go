package bconfig

import (
	"fmt"
	"reflect"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/util"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// ConfigHolder holds one of the registered implementations of config interface C
//
// In YAML the first property "type" selects the implementation, followed by its own properties, e.g.:
//
//	source:
//	  type: udp
//	  packetSize: 9000
type ConfigHolder[C BaseConfig] struct {
	Location string `yaml:"-"` // location in YAML document, for error messages
	Value    C
}

func (holder ConfigHolder[C]) String() string {
	return fmt.Sprint(holder.Value)
}

// IsSet checks whether a config has been loaded
func (holder ConfigHolder[C]) IsSet() bool {
	return !reflect.ValueOf(&holder.Value).Elem().IsNil()
}

// Verify checks the config if loaded, or returns error if it's required but undefined
func (holder ConfigHolder[C]) Verify(required bool) error {
	if !holder.IsSet() {
		if required {
			return fmt.Errorf(": undefined")
		}
		return nil
	}
	return holder.Value.VerifyConfig()
}

// MarshalYAML exports the held config with its type. The result is not reversible.
func (holder ConfigHolder[C]) MarshalYAML() (interface{}, error) {
	return holder.Value, nil
}

// UnmarshalYAML creates the config of the type named in the mapping and decodes the rest into it
func (holder *ConfigHolder[C]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return util.NewYamlError(value, "expected a mapping with .type")
	}
	if len(value.Content) < 2 {
		return util.NewYamlError(value, ".type is undefined")
	}
	if key := value.Content[0]; key.Kind != yaml.ScalarNode || key.Value != "type" {
		return util.NewYamlError(value, fmt.Sprintf(".type is not the first property, which is: %s", key.Value))
	}
	typeName := value.Content[1].Value

	table := getConfigConstructors[C]()
	create, found := table[typeName]
	if !found {
		return util.NewYamlError(value, fmt.Sprintf(".type: unsupported '%s', expected one of %v", typeName, table.TypeNames()))
	}
	config := create()
	if err := util.DecodeYamlNodeStrict(value, config); err != nil {
		return util.NewYamlError(value, err.Error())
	}
	holder.Value = config
	holder.Location = util.GetYamlLocation(value)
	return nil
}

// ConfigCreatorTable maps type names to the constructors of config implementations
type ConfigCreatorTable[C BaseConfig] map[string]func() C

// TypeNames returns all type names in order
func (table ConfigCreatorTable[C]) TypeNames() []string {
	names := maps.Keys(table)
	slices.Sort(names)
	return names
}

// registered tables by the name of config interface
var typeToConfigCreatorTables = make(map[string]interface{})

// RegisterConfigConstructors registers the table of constructors for config interface C
//
// It can only be called once for each C, normally from init() of the package providing implementations
func RegisterConfigConstructors[C BaseConfig](table ConfigCreatorTable[C]) {
	name := configInterfaceName[C]()
	if _, exists := typeToConfigCreatorTables[name]; exists {
		logger.Panicf("already registered %s", name)
	}
	typeToConfigCreatorTables[name] = table
}

func getConfigConstructors[C BaseConfig]() ConfigCreatorTable[C] {
	name := configInterfaceName[C]()
	table, exists := typeToConfigCreatorTables[name]
	if !exists {
		logger.Panicf("not registered %s", name)
	}
	return table.(ConfigCreatorTable[C])
}

func configInterfaceName[C BaseConfig]() string {
	return reflect.TypeOf((*C)(nil)).Elem().String()
}
