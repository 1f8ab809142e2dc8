// Package block is the block host: it keeps registered block types and
// renders block markup embedded in post content.
package block

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("block type is already registered")
	ErrNotRegistered     = errors.New("block type is not registered")
	// ErrInvalidAttributes is wrapped by render callbacks that reject the
	// attributes they were given.
	ErrInvalidAttributes = errors.New("invalid block attributes")
)

// Attributes are the decoded JSON attributes of one block instance.
type Attributes map[string]any

// RenderContext is the ambient state a block renders in.
type RenderContext struct {
	// PostID is the post currently being displayed, 0 outside of a post.
	PostID int64
	// Query holds the inbound request's query parameters.
	Query url.Values
}

// Instance describes the block being rendered.
type Instance struct {
	Name       string
	Attributes Attributes
	Context    RenderContext
	Type       *Type
}

// RenderFunc produces the markup of a dynamic block. content is the
// already-rendered inner content.
type RenderFunc func(ctx context.Context, attrs Attributes, content string, inst *Instance) (string, error)

// Type is a registered block type. Types without a RenderFunc are static:
// their saved markup is output as is.
type Type struct {
	Metadata Metadata
	Render   RenderFunc
}

// IsDynamic reports whether the type renders on the server.
func (t *Type) IsDynamic() bool {
	return t.Render != nil
}

type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*Type),
	}
}

// Register adds a block type described by meta.
func (r *Registry) Register(meta *Metadata, render RenderFunc) (*Type, error) {
	if meta == nil {
		return nil, fmt.Errorf("block metadata cannot be nil")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[meta.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, meta.Name)
	}

	t := &Type{
		Metadata: *meta,
		Render:   render,
	}
	r.types[meta.Name] = t
	return t, nil
}

// RegisterFromMetadata loads block.json from dir in fsys and registers it.
func (r *Registry) RegisterFromMetadata(fsys fs.FS, dir string, render RenderFunc) (*Type, error) {
	meta, err := LoadMetadata(fsys, dir)
	if err != nil {
		return nil, err
	}
	return r.Register(meta, render)
}

func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered block names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders one instance of a registered dynamic block.
func (r *Registry) Render(ctx context.Context, name string, attrs Attributes, content string, rc RenderContext) (string, error) {
	t, ok := r.Get(name)
	if !ok || !t.IsDynamic() {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return r.renderType(ctx, t, attrs, content, rc)
}

func (r *Registry) renderType(ctx context.Context, t *Type, attrs Attributes, content string, rc RenderContext) (string, error) {
	prepared := withDefaults(t.Metadata.Attributes, attrs)
	inst := &Instance{
		Name:       t.Metadata.Name,
		Attributes: prepared,
		Context:    rc,
		Type:       t,
	}

	out, err := t.Render(ctx, prepared, content, inst)
	if err != nil {
		return "", fmt.Errorf("failed to render block %s: %w", t.Metadata.Name, err)
	}
	return out, nil
}

// withDefaults copies attrs and fills in schema defaults for missing keys.
func withDefaults(schema map[string]AttributeSchema, attrs Attributes) Attributes {
	out := make(Attributes, len(attrs)+len(schema))
	for k, v := range attrs {
		out[k] = v
	}
	for k, s := range schema {
		if _, ok := out[k]; !ok && s.Default != nil {
			out[k] = s.Default
		}
	}
	return out
}
