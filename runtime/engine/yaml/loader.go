package yaml

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BDNK1/rotor/runtime"
	goyaml "gopkg.in/yaml.v3"
)

// definitionFile is the on-disk shape of a provider definition.
type definitionFile struct {
	Name    string                 `yaml:"name"`
	Domains []string               `yaml:"domains"`
	Options map[string]goyaml.Node `yaml:"options"`
	Prepare []runtime.FlowSpec     `yaml:"prepare"`
	Execute []runtime.FlowSpec     `yaml:"execute"`
}

// DefinitionLoader loads provider definitions from YAML files.
type DefinitionLoader struct {
	builder *runtime.FlowBuilder
}

func NewDefinitionLoader(builder *runtime.FlowBuilder) *DefinitionLoader {
	return &DefinitionLoader{builder: builder}
}

func (l *DefinitionLoader) Extensions() []string {
	return []string{"*.yaml", "*.yml"}
}

// Load reads and builds one definition. Errors name the file.
func (l *DefinitionLoader) Load(filePath string) (runtime.Definition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return runtime.Definition{}, fmt.Errorf("error reading YAML file: %w", err)
	}

	def, err := l.Parse(data)
	if err != nil {
		return runtime.Definition{}, fmt.Errorf("error while building provider at %s: %w", filePath, err)
	}
	return def, nil
}

// Parse builds a definition from YAML source.
func (l *DefinitionLoader) Parse(data []byte) (runtime.Definition, error) {
	var file definitionFile
	if err := goyaml.Unmarshal(data, &file); err != nil {
		return runtime.Definition{}, fmt.Errorf("error unmarshalling YAML: %w", err)
	}
	if file.Name == "" {
		return runtime.Definition{}, fmt.Errorf("missing provider name")
	}
	if len(file.Domains) == 0 {
		return runtime.Definition{}, fmt.Errorf("provider %s declares no domains", file.Name)
	}
	if len(file.Execute) == 0 {
		return runtime.Definition{}, fmt.Errorf("provider %s has no execute flows", file.Name)
	}

	def := runtime.Definition{
		Name:    file.Name,
		Domains: file.Domains,
		Options: make(map[string]runtime.Option, len(file.Options)),
	}
	for name, node := range file.Options {
		opt, err := decodeOption(&node)
		if err != nil {
			return runtime.Definition{}, fmt.Errorf("option %s: %w", name, err)
		}
		def.Options[name] = opt
	}

	var err error
	if def.Prepare, err = l.buildFlows("prepare", file.Prepare); err != nil {
		return runtime.Definition{}, err
	}
	if def.Execute, err = l.buildFlows("execute", file.Execute); err != nil {
		return runtime.Definition{}, err
	}
	return def, nil
}

func (l *DefinitionLoader) buildFlows(stage string, specs []runtime.FlowSpec) ([]*runtime.Flow, error) {
	flows := make([]*runtime.Flow, 0, len(specs))
	for i, spec := range specs {
		flow, err := l.builder.Build(spec)
		if err != nil {
			return nil, fmt.Errorf("%s flow %d: %w", stage, i+1, err)
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// decodeOption accepts a bare description or a {description, values, optional} mapping.
func decodeOption(node *goyaml.Node) (runtime.Option, error) {
	if node.Kind == goyaml.ScalarNode {
		return runtime.Option{Description: node.Value}, nil
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return runtime.Option{}, err
	}
	var opt runtime.Option
	if err := runtime.DecodeMap(raw, &opt); err != nil {
		return runtime.Option{}, err
	}
	if opt.Description == "" {
		return runtime.Option{}, fmt.Errorf("missing description")
	}
	return opt, nil
}

// LoadDir loads every definition in dir into registry and returns how many were added.
func (l *DefinitionLoader) LoadDir(dir string, registry *runtime.Registry) (int, error) {
	var files []string
	for _, pattern := range l.Extensions() {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, fmt.Errorf("error reading directory: %w", err)
		}
		files = append(files, matches...)
	}

	for _, file := range files {
		def, err := l.Load(file)
		if err != nil {
			return 0, err
		}
		if err := registry.Register(def); err != nil {
			return 0, fmt.Errorf("%s: %w", file, err)
		}
	}
	return len(files), nil
}
