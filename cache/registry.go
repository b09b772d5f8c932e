package cache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Names of the built in key generators.
const (
	DefaultKeyGeneratorName   = "default"
	OperationKeyGeneratorName = "operation"
	TrailingKeyGeneratorName  = "trailing"
	HashedKeyGeneratorName    = "hashed"
)

// KeyGeneratorFactory instantiates a generator on first use.
type KeyGeneratorFactory func() KeyGenerator

// KeyGeneratorRegistry resolves generators by name. Registered instances take
// precedence over factories, and each name is resolved once.
type KeyGeneratorRegistry struct {
	instances *xsync.MapOf[string, KeyGenerator]
	factories *xsync.MapOf[string, KeyGeneratorFactory]
	resolved  *xsync.MapOf[string, KeyGenerator]
}

// NewKeyGeneratorRegistry returns a registry preloaded with the built in
// generators.
func NewKeyGeneratorRegistry() *KeyGeneratorRegistry {
	r := &KeyGeneratorRegistry{
		instances: xsync.NewMapOf[string, KeyGenerator](),
		factories: xsync.NewMapOf[string, KeyGeneratorFactory](),
		resolved:  xsync.NewMapOf[string, KeyGenerator](),
	}
	r.RegisterFactory(DefaultKeyGeneratorName, NewDefaultKeyGenerator)
	r.RegisterFactory(OperationKeyGeneratorName, func() KeyGenerator { return OperationKeyGenerator{} })
	r.RegisterFactory(TrailingKeyGeneratorName, func() KeyGenerator { return TrailingArgKeyGenerator{} })
	r.RegisterFactory(HashedKeyGeneratorName, func() KeyGenerator { return HashedKeyGenerator{MaxLength: 64} })
	return r
}

// Register adds a ready made generator under name.
func (r *KeyGeneratorRegistry) Register(name string, gen KeyGenerator) {
	r.instances.Store(name, gen)
	r.resolved.Delete(name)
}

// RegisterFactory adds a generator constructor under name.
func (r *KeyGeneratorRegistry) RegisterFactory(name string, factory KeyGeneratorFactory) {
	r.factories.Store(name, factory)
	r.resolved.Delete(name)
}

// Resolve returns the generator registered under name. An empty name resolves
// to the default generator.
func (r *KeyGeneratorRegistry) Resolve(name string) (KeyGenerator, error) {
	if name == "" {
		name = DefaultKeyGeneratorName
	}
	if gen, ok := r.resolved.Load(name); ok {
		return gen, nil
	}

	gen, ok := r.instances.Load(name)
	if !ok {
		factory, found := r.factories.Load(name)
		if !found {
			return nil, keyGeneratorNotFoundError(name)
		}
		gen = factory()
	}

	actual, _ := r.resolved.LoadOrStore(name, gen)
	return actual, nil
}
