package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Runtime: host API
// ---------------------------------------------------------------------------

// DebugEvent describes a LINE instruction reached while a debug listener is
// installed.
type DebugEvent struct {
	Source string
	Line   int
	PC     int
	Chunk  *Chunk
}

// DebugListener observes execution line by line.
type DebugListener interface {
	OnLine(ev DebugEvent)
}

// DebugListenerFunc adapts a function to DebugListener.
type DebugListenerFunc func(ev DebugEvent)

func (fn DebugListenerFunc) OnLine(ev DebugEvent) { fn(ev) }

// Runtime is one isolated language instance: a global scope with its class
// and namespace registries, settings, and the engine that runs chunks
// against them. Separate runtimes share nothing.
type Runtime struct {
	ID uuid.UUID

	config      Config
	global      *Scope
	listener    DebugListener
	constructor Constructor
	engine      *Engine
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithDebugListener installs a per-line debug hook.
func WithDebugListener(l DebugListener) Option {
	return func(r *Runtime) { r.listener = l }
}

// WithConstructor installs the host constructor used by NEW_OBJ.
func WithConstructor(c Constructor) Option {
	return func(r *Runtime) { r.constructor = c }
}

// NewRuntime creates a runtime with an empty global scope.
func NewRuntime(cfg Config, opts ...Option) *Runtime {
	r := &Runtime{
		ID:     uuid.New(),
		config: cfg.normalized(),
		global: NewGlobalScope(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engine = NewEngine(r)
	log.Debugf("runtime %s created (max stack %d, sandbox %t)", r.ID, r.config.MaxStack, r.config.Sandbox)
	return r
}

// Config returns the runtime's settings.
func (r *Runtime) Config() Config { return r.config }

// GlobalScope returns the runtime's global scope.
func (r *Runtime) GlobalScope() *Scope { return r.global }

// Engine returns the runtime's primary engine.
func (r *Runtime) Engine() *Engine { return r.engine }

// Get returns a global value, or Null.
func (r *Runtime) Get(name string) Value { return r.global.Get(name) }

// Put binds a global value.
func (r *Runtime) Put(name string, v Value) { r.global.Define(name, v) }

// LoadNatives binds host values into scope, or into the global scope when
// scope is nil.
func (r *Runtime) LoadNatives(scope *Scope, natives map[string]Value) {
	if scope == nil {
		scope = r.global
	}
	scope.LoadNatives(natives)
}

// Execute runs chunk against the global scope and returns its result. An
// error nothing caught is returned as *Error.
func (r *Runtime) Execute(chunk *Chunk, args ...Value) (Value, error) {
	return r.executeOn(r.engine, chunk, args)
}

// Call invokes a callable value on the primary engine.
func (r *Runtime) Call(fn Value, args ...Value) (Value, error) {
	return r.engine.Call(fn, args...)
}

func (r *Runtime) executeOn(e *Engine, chunk *Chunk, args []Value) (Value, error) {
	if chunk == nil {
		return nil, fmt.Errorf("execute: nil chunk")
	}
	v, err := e.callChunk(chunk, nil, r.global, args)
	if err != nil {
		log.Debugf("runtime %s: uncaught error in %s: %s", r.ID, chunk.Name, err)
		return nil, err
	}
	return v, nil
}

// ExecuteParallel runs each chunk on its own engine concurrently. The
// engines share the global scope and registries; nothing else. The first
// error cancels ctx for runs that have not started yet; running chunks are
// never interrupted.
func (r *Runtime) ExecuteParallel(ctx context.Context, chunks []*Chunk) ([]Value, error) {
	results := make([]Value, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := r.executeOn(NewEngine(r), c, nil)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", i, c.Name, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
