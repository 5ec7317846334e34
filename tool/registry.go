package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/util"
)

// Registry maps capability names to tools, keeping registration order for
// descriptor listing. A Registry is populated while an agent is built and
// only read afterwards; reads are safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding tools, failing on the first
// duplicate name or malformed schema.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be non-empty and unique, and the descriptor
// schema must be a JSON schema object.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return &core.ConfigurationError{Kind: core.ConfigInvalid, Message: "nil tool"}
	}

	name := t.Name()
	if name == "" {
		return &core.ConfigurationError{Kind: core.ConfigInvalid, Message: "tool name must not be empty"}
	}

	if _, exists := r.tools[name]; exists {
		return &core.ConfigurationError{
			Kind:    core.ConfigDuplicateName,
			Subject: name,
			Message: "a capability with this name is already registered",
		}
	}

	d := t.Descriptor(context.Background(), "")
	if d.Parameters != nil {
		if err := util.CheckSchema(d.Parameters); err != nil {
			return &core.ConfigurationError{Kind: core.ConfigMalformedSchema, Subject: name, Err: err}
		}
	}

	if r.tools == nil {
		r.tools = make(map[string]Tool)
	}

	r.tools[name] = t
	r.order = append(r.order, name)

	return nil
}

// Resolve returns the tool registered under name, or a ToolError with code
// UNKNOWN_CAPABILITY wrapping ErrUnknownCapability.
func (r *Registry) Resolve(name string) (Tool, error) {
	if r != nil {
		if t, ok := r.tools[name]; ok {
			return t, nil
		}
	}
	return nil, &ToolError{
		Tool:    name,
		Message: fmt.Sprintf("no capability named %q", name),
		Code:    CodeUnknownCapability,
		Err:     ErrUnknownCapability,
	}
}

// Descriptors lists every tool's descriptor in registration order.
func (r *Registry) Descriptors(ctx context.Context, hint string) []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].Descriptor(ctx, hint)
		if d.Name == "" {
			d.Name = name
		}
		out = append(out, d)
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
