package codec

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"oats/internal/deps"
)

// NoToolError reports that no available tool supports a descriptor.
type NoToolError struct {
	Codec     Codec
	Mode      Mode
	Parameter string
}

func (e *NoToolError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("no available tool supports %s %s %s", e.Codec, e.Mode, e.Parameter)
	}
	return fmt.Sprintf("no available tool supports %s %s", e.Codec, e.Mode)
}

// NoDecoderError reports that no available tool can decode a source to WAV.
type NoDecoderError struct {
	Extension string
}

func (e *NoDecoderError) Error() string {
	return fmt.Sprintf("no available tool can decode %q sources", e.Extension)
}

// Selection is the outcome of Select.
type Selection struct {
	Tool       Tool
	Capability Capability
	Path       string
}

// ToolStatus is a registry entry with its resolved availability.
type ToolStatus struct {
	Tool      Tool
	Priority  int
	Available bool
	Disabled  bool
	Path      string
	Detail    string
}

type entry struct {
	tool     Tool
	priority int
	disabled bool

	once      sync.Once
	available bool
	path      string
	detail    string
}

// Registry indexes the tool table and memoizes host availability.
type Registry struct {
	entries []*entry
	byID    map[string]*entry
	lookup  deps.LookupFunc
}

// Option customizes a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	lookup     deps.LookupFunc
	binaries   map[string]string
	priorities map[string]int
	disabled   []string
}

// WithLookup replaces exec.LookPath for availability checks.
func WithLookup(fn deps.LookupFunc) Option {
	return func(o *registryOptions) {
		o.lookup = fn
	}
}

// WithBinaries overrides executable names by tool ID.
func WithBinaries(binaries map[string]string) Option {
	return func(o *registryOptions) {
		o.binaries = binaries
	}
}

// WithPriorities overrides the priority of every capability of a tool.
func WithPriorities(priorities map[string]int) Option {
	return func(o *registryOptions) {
		o.priorities = priorities
	}
}

// WithDisabled marks tools as unavailable regardless of the host.
func WithDisabled(ids []string) Option {
	return func(o *registryOptions) {
		o.disabled = ids
	}
}

// NewRegistry builds a registry from tools in declaration order. Tool IDs
// must be unique; later duplicates are ignored.
func NewRegistry(tools []Tool, opts ...Option) *Registry {
	options := registryOptions{lookup: exec.LookPath}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	reg := &Registry{
		byID:   make(map[string]*entry, len(tools)),
		lookup: options.lookup,
	}
	for _, tool := range tools {
		id := strings.ToLower(strings.TrimSpace(tool.ID))
		if id == "" {
			continue
		}
		if _, dup := reg.byID[id]; dup {
			continue
		}
		tool.ID = id
		if bin := strings.TrimSpace(options.binaries[id]); bin != "" {
			tool.Executable = bin
		}
		if strings.TrimSpace(tool.Executable) == "" {
			tool.Executable = id
		}
		tool.Capabilities = slices.Clone(tool.Capabilities)
		priority, override := options.priorities[id]
		for i := range tool.Capabilities {
			tool.Capabilities[i].ToolID = id
			if override {
				tool.Capabilities[i].Priority = priority
			}
		}
		if !override {
			priority = defaultPriority(tool)
		}
		e := &entry{
			tool:     tool,
			priority: priority,
			disabled: slices.Contains(options.disabled, id),
		}
		reg.entries = append(reg.entries, e)
		reg.byID[id] = e
	}
	return reg
}

// NewDefaultRegistry builds a registry over DefaultTools.
func NewDefaultRegistry(opts ...Option) *Registry {
	return NewRegistry(DefaultTools(), opts...)
}

func defaultPriority(tool Tool) int {
	if len(tool.Capabilities) > 0 {
		return tool.Capabilities[0].Priority
	}
	if tool.Kind == BaselineMultiplexer {
		return BaselinePriority
	}
	return DedicatedPriority
}

func (r *Registry) resolve(e *entry) {
	e.once.Do(func() {
		if e.disabled {
			e.detail = "disabled in configuration"
			return
		}
		path, err := deps.ResolveWith(r.lookup, e.tool.Executable)
		if err != nil {
			e.detail = err.Error()
			return
		}
		e.available = true
		e.path = path
	})
}

// Tools lists every registry entry in declaration order with its availability.
func (r *Registry) Tools() []ToolStatus {
	out := make([]ToolStatus, 0, len(r.entries))
	for _, e := range r.entries {
		r.resolve(e)
		out = append(out, ToolStatus{
			Tool:      e.tool,
			Priority:  e.priority,
			Available: e.available,
			Disabled:  e.disabled,
			Path:      e.path,
			Detail:    e.detail,
		})
	}
	return out
}

// IsAvailable reports whether the tool's executable resolves on this host.
// Unknown IDs report false.
func (r *Registry) IsAvailable(id string) bool {
	e, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return false
	}
	r.resolve(e)
	return e.available
}

// Path returns the resolved executable path of an available tool.
func (r *Registry) Path(id string) string {
	e, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return ""
	}
	r.resolve(e)
	return e.path
}

// Tool returns the static definition for id.
func (r *Registry) Tool(id string) (Tool, bool) {
	e, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

// Codecs lists every codec declared by any tool, available or not, in
// declaration order.
func (r *Registry) Codecs() []Codec {
	var out []Codec
	for _, e := range r.entries {
		for _, c := range e.tool.Capabilities {
			if !slices.Contains(out, c.Codec) {
				out = append(out, c.Codec)
			}
		}
	}
	return out
}

// Modes lists every mode declared for codec by any tool, available or not.
func (r *Registry) Modes(codec Codec) []Mode {
	var out []Mode
	for _, e := range r.entries {
		for _, c := range e.tool.Capabilities {
			if c.Codec == codec && !slices.Contains(out, c.Mode) {
				out = append(out, c.Mode)
			}
		}
	}
	return out
}

// CapabilitiesFor returns capabilities for (codec, mode) from available tools,
// ordered by priority and then declaration order.
func (r *Registry) CapabilitiesFor(codec Codec, mode Mode) []Capability {
	var out []Capability
	for _, e := range r.entries {
		for _, c := range e.tool.Capabilities {
			if c.Codec != codec || c.Mode != mode {
				continue
			}
			r.resolve(e)
			if e.available {
				out = append(out, c)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Select picks the preferred available tool whose capability covers d.
func (r *Registry) Select(d Descriptor) (Selection, error) {
	for _, c := range r.CapabilitiesFor(d.Codec, d.Mode) {
		if d.HasParameter && !c.Range.Contains(d.Parameter) {
			continue
		}
		e := r.byID[c.ToolID]
		return Selection{Tool: e.tool, Capability: c, Path: e.path}, nil
	}
	noTool := &NoToolError{Codec: d.Codec, Mode: d.Mode}
	if d.HasParameter {
		noTool.Parameter = d.Param()
	}
	return Selection{}, noTool
}

// Decoder picks the preferred available tool that can decode path to WAV.
func (r *Registry) Decoder(path string) (Selection, error) {
	var best *entry
	for _, e := range r.entries {
		if !e.tool.CanDecode(path) {
			continue
		}
		r.resolve(e)
		if !e.available {
			continue
		}
		if best == nil || e.priority < best.priority {
			best = e
		}
	}
	if best == nil {
		return Selection{}, &NoDecoderError{Extension: strings.ToLower(filepath.Ext(path))}
	}
	return Selection{Tool: best.tool, Path: best.path}, nil
}
