package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Provider rotates the password of one online account type.
type Provider interface {
	Name() string
	Domains() []string
	Options() map[string]Option

	// Prepare verifies the old password and captures everything needed to change it.
	Prepare(ctx context.Context, oldPassword string) error
	// Execute performs the change. It must follow a successful Prepare.
	Execute(ctx context.Context, oldPassword, newPassword string) error
}

// Option documents a provider setting supplied by the user.
type Option struct {
	Description string            `yaml:"description"`
	Optional    bool              `yaml:"optional"`
	Values      map[string]string `yaml:"values"` // allowed value to label; empty allows anything
}

// Validate checks a supplied value. present is false when the user gave none.
func (o Option) Validate(name, value string, present bool) error {
	if !present {
		if o.Optional {
			return nil
		}
		return fmt.Errorf("missing required option %s", name)
	}
	if len(o.Values) == 0 {
		return nil
	}
	if _, ok := o.Values[value]; !ok {
		allowed := make([]string, 0, len(o.Values))
		for v := range o.Values {
			allowed = append(allowed, v)
		}
		sort.Strings(allowed)
		return fmt.Errorf("invalid value %q for option %s, expected one of: %s", value, name, strings.Join(allowed, ", "))
	}
	return nil
}

// Definition is a provider described as data: options and the flows of its two stages.
type Definition struct {
	Name    string
	Domains []string
	Options map[string]Option
	Prepare []*Flow
	Execute []*Flow
}

// SessionFactory opens the HTTP session for one provider run.
type SessionFactory func() (Session, error)

// FlowProvider runs a Definition. It keeps the environment between Prepare and
// Execute, so a value must not be shared between concurrent rotations.
type FlowProvider struct {
	def        Definition
	options    map[string]string
	newSession SessionFactory
	prompter   Prompter
	logger     *slog.Logger
	config     RunConfig

	env *Environment
}

// FlowProviderOption configures a FlowProvider.
type FlowProviderOption func(*FlowProvider)

func WithPrompter(p Prompter) FlowProviderOption {
	return func(fp *FlowProvider) { fp.prompter = p }
}

func WithLogger(l *slog.Logger) FlowProviderOption {
	return func(fp *FlowProvider) { fp.logger = l }
}

func WithRunConfig(c RunConfig) FlowProviderOption {
	return func(fp *FlowProvider) { fp.config = c }
}

func WithSessionFactory(f SessionFactory) FlowProviderOption {
	return func(fp *FlowProvider) { fp.newSession = f }
}

// NewFlowProvider validates the option values against the definition.
func NewFlowProvider(def Definition, options map[string]string, opts ...FlowProviderOption) (*FlowProvider, error) {
	names := make([]string, 0, len(def.Options))
	for name := range def.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := options[name]
		if err := def.Options[name].Validate(name, v, ok); err != nil {
			return nil, err
		}
	}
	for name := range options {
		if _, ok := def.Options[name]; !ok {
			return nil, fmt.Errorf("unknown option %s for provider %s", name, def.Name)
		}
	}

	fp := &FlowProvider{
		def:     def,
		options: options,
		logger:  slog.Default(),
		newSession: func() (Session, error) {
			var cfg SessionConfig
			if err := InitializeConfig(&cfg, nil); err != nil {
				return nil, err
			}
			return NewHTTPSession(cfg), nil
		},
	}
	for _, opt := range opts {
		opt(fp)
	}
	return fp, nil
}

func (p *FlowProvider) Name() string               { return p.def.Name }
func (p *FlowProvider) Domains() []string          { return p.def.Domains }
func (p *FlowProvider) Options() map[string]Option { return p.def.Options }

// Environment returns the environment of the current run, nil before Prepare.
func (p *FlowProvider) Environment() *Environment {
	return p.env
}

func (p *FlowProvider) Prepare(ctx context.Context, oldPassword string) error {
	session, err := p.newSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	vars := make(map[string]any, len(p.options)+1)
	for k, v := range p.options {
		vars[k] = v
	}
	vars["old_password"] = oldPassword

	env := NewEnvironment(session, p.prompter, p.logger.With("provider", p.def.Name), vars)
	p.env = env
	return p.runStage(ctx, &Stage{Name: "prepare", Flows: p.def.Prepare})
}

func (p *FlowProvider) Execute(ctx context.Context, oldPassword, newPassword string) error {
	if p.env == nil {
		return ErrNotPrepared
	}
	p.env.Vars.Set("old_password", oldPassword)
	p.env.Vars.Set("new_password", newPassword)
	return p.runStage(ctx, &Stage{Name: "execute", Flows: p.def.Execute})
}

func (p *FlowProvider) runStage(ctx context.Context, stage *Stage) error {
	var err error
	p.env.WithScopedContext(ctx, func() {
		p.env.Logger().InfoContext(p.env, fmt.Sprintf("Running %s stage", stage.Name), "flows", len(stage.Flows))
		err = stage.Run(p.env, p.config.MaxStageRestarts)
	})
	return err
}

// Registry holds provider definitions, addressable by name or domain.
type Registry struct {
	byName   map[string]Definition
	byDomain map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Definition),
		byDomain: make(map[string]string),
	}
}

// Register adds a definition. Names and domains must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("provider definition has no name")
	}
	if _, ok := r.byName[def.Name]; ok {
		return fmt.Errorf("provider %s already registered", def.Name)
	}
	for _, d := range def.Domains {
		if owner, ok := r.byDomain[strings.ToLower(d)]; ok {
			return fmt.Errorf("domain %s of provider %s already claimed by %s", d, def.Name, owner)
		}
	}
	r.byName[def.Name] = def
	for _, d := range def.Domains {
		r.byDomain[strings.ToLower(d)] = def.Name
	}
	return nil
}

// Lookup finds a definition by name, then by domain.
func (r *Registry) Lookup(key string) (Definition, bool) {
	if def, ok := r.byName[key]; ok {
		return def, true
	}
	if name, ok := r.byDomain[strings.ToLower(key)]; ok {
		return r.byName[name], true
	}
	return Definition{}, false
}

// All returns every definition sorted by name.
func (r *Registry) All() []Definition {
	defs := make([]Definition, 0, len(r.byName))
	for _, def := range r.byName {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
