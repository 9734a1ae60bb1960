package appfunctiondata

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Factory converts between a value type and its container form.
type Factory[T any] interface {
	FromData(d *Data) (T, error)
	ToData(v T) (*Data, error)
}

// FactoryFuncs adapts a pair of functions to Factory.
type FactoryFuncs[T any] struct {
	Decode func(d *Data) (T, error)
	Encode func(v T) (*Data, error)
}

func (f FactoryFuncs[T]) FromData(d *Data) (T, error) { return f.Decode(d) }
func (f FactoryFuncs[T]) ToData(v T) (*Data, error)   { return f.Encode(v) }

type registryEntry struct {
	name   string
	typ    reflect.Type
	decode func(*Data) (any, error)
	encode func(any) (*Data, error)
}

// Registry maps qualified schema names and Go types to factories. It is
// safe for concurrent use; registration normally happens at init time.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*registryEntry
	byType map[reflect.Type]*registryEntry
	log    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger failures are reported to.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName: map[string]*registryEntry{},
		byType: map[reflect.Type]*registryEntry{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	if err := Register[URIGrant](r, URIGrantQualifiedName, uriGrantFactory{}); err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the process-wide registry. It comes with the
// URIGrant factory installed.
func DefaultRegistry() *Registry { return defaultRegistry() }

// Register installs f for T under qualifiedName. Registering a name or a type
// twice is an error.
func Register[T any](r *Registry, qualifiedName string, f Factory[T]) error {
	if qualifiedName == "" {
		return fmt.Errorf("appfunctiondata: register %v: empty qualified name", reflect.TypeFor[T]())
	}
	typ := reflect.TypeFor[T]()
	e := &registryEntry{
		name:   qualifiedName,
		typ:    typ,
		decode: func(d *Data) (any, error) { return f.FromData(d) },
		encode: func(v any) (*Data, error) {
			tv, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("value of type %T is not %v", v, typ)
			}
			return f.ToData(tv)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[qualifiedName]; dup {
		return fmt.Errorf("appfunctiondata: a factory for %s is already registered", qualifiedName)
	}
	if prev, dup := r.byType[typ]; dup {
		return fmt.Errorf("appfunctiondata: %v is already registered as %s", typ, prev.name)
	}
	r.byName[qualifiedName] = e
	r.byType[typ] = e
	return nil
}

// QualifiedNameOf returns the name T is registered under.
func QualifiedNameOf[T any](r *Registry) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[reflect.TypeFor[T]()]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Serialize converts v with the factory registered for T.
func Serialize[T any](r *Registry, v T) (*Data, error) {
	typ := reflect.TypeFor[T]()
	e := r.entryForType(typ)
	if e == nil {
		return nil, r.fail("serialize", typ.String(), errNoFactory)
	}
	return r.encode(e, typ.String(), v)
}

// Deserialize converts d with the factory registered for T.
func Deserialize[T any](r *Registry, d *Data) (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()
	e := r.entryForType(typ)
	if e == nil {
		return zero, r.fail("deserialize", typ.String(), errNoFactory)
	}
	v, err := r.decode(e, typ.String(), d)
	if err != nil {
		return zero, err
	}
	tv, _ := v.(T)
	return tv, nil
}

// SerializeNamed converts v with the factory registered under qualifiedName.
func (r *Registry) SerializeNamed(qualifiedName string, v any) (*Data, error) {
	e := r.entryForName(qualifiedName)
	if e == nil {
		return nil, r.fail("serialize", qualifiedName, errNoFactory)
	}
	return r.encode(e, qualifiedName, v)
}

// DeserializeNamed converts d with the factory registered under
// qualifiedName.
func (r *Registry) DeserializeNamed(qualifiedName string, d *Data) (any, error) {
	e := r.entryForName(qualifiedName)
	if e == nil {
		return nil, r.fail("deserialize", qualifiedName, errNoFactory)
	}
	return r.decode(e, qualifiedName, d)
}

var errNoFactory = errors.New("no factory registered")

func (r *Registry) entryForType(t reflect.Type) *registryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}

func (r *Registry) entryForName(name string) *registryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

func (r *Registry) encode(e *registryEntry, what string, v any) (d *Data, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, err = nil, r.fail("serialize", what, fmt.Errorf("factory panicked: %v", p))
		}
	}()
	d, err = e.encode(v)
	if err != nil {
		return nil, r.fail("serialize", what, err)
	}
	if d == nil {
		return nil, r.fail("serialize", what, fmt.Errorf("factory returned no data"))
	}
	return d, nil
}

func (r *Registry) decode(e *registryEntry, what string, d *Data) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, r.fail("deserialize", what, fmt.Errorf("factory panicked: %v", p))
		}
	}()
	if d == nil {
		return nil, r.fail("deserialize", what, fmt.Errorf("nil data"))
	}
	v, err = e.decode(d)
	if err != nil {
		return nil, r.fail("deserialize", what, err)
	}
	return v, nil
}

// fail logs cause and returns the uniform error callers see. The cause is
// only logged.
func (r *Registry) fail(op, what string, cause error) error {
	r.log.Debug("appfunctiondata: factory failure", slog.String("op", op), slog.String("type", what), slog.Any("err", cause))
	return fmt.Errorf("%w: unable to %s %s; is a factory registered?", ErrSerialization, op, what)
}
