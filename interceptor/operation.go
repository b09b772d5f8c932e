package interceptor

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config carries defaults shared by every declaration of an operation, the way
// a type level cache configuration applies to all of its methods.
type Config struct {
	CacheNames   []string `json:"cache_names" yaml:"cache_names"`
	KeyGenerator string   `json:"key_generator" yaml:"key_generator"`
}

// Cacheable declares the read path.
type Cacheable struct {
	CacheNames   []string `json:"cache_names" yaml:"cache_names"`
	KeyGenerator string   `json:"key_generator" yaml:"key_generator"`
	// Params restricts key generation to the named arguments.
	Params []string `json:"params" yaml:"params"`
	// Atomic computes through the first cache's get-or-compute so concurrent
	// callers run the operation at most once per key.
	Atomic bool `json:"atomic" yaml:"atomic"`
}

// Put declares a write of the operation result.
type Put struct {
	CacheNames   []string `json:"cache_names" yaml:"cache_names"`
	KeyGenerator string   `json:"key_generator" yaml:"key_generator"`
	Params       []string `json:"params" yaml:"params"`
	// Async hands the write to the worker pool.
	Async bool `json:"async" yaml:"async"`
}

// Invalidate declares the removal of one key, or of every entry when All is set.
type Invalidate struct {
	CacheNames   []string `json:"cache_names" yaml:"cache_names"`
	KeyGenerator string   `json:"key_generator" yaml:"key_generator"`
	Params       []string `json:"params" yaml:"params"`
	All          bool     `json:"all" yaml:"all"`
	Async        bool     `json:"async" yaml:"async"`
}

// Operation is the declaration a wrapped function is registered with.
type Operation struct {
	// Name identifies the operation. It is the plan memo key and the operation
	// argument passed to key generators.
	Name string `json:"name" yaml:"name"`
	// Params names the positional arguments, in order. Only needed when a
	// declaration filters arguments by name.
	Params []string `json:"params" yaml:"params"`
	// Void marks operations without a result. They are never read from cache
	// and their puts are ignored.
	Void bool `json:"void" yaml:"void"`

	Config      Config       `json:"config" yaml:"config"`
	Cacheable   *Cacheable   `json:"cacheable,omitempty" yaml:"cacheable,omitempty"`
	Puts        []Put        `json:"puts,omitempty" yaml:"puts,omitempty"`
	Invalidates []Invalidate `json:"invalidates,omitempty" yaml:"invalidates,omitempty"`

	// Condition is evaluated before dispatch. When it returns false the
	// operation runs without touching any cache.
	Condition func(args []any) bool `json:"-" yaml:"-"`
}

// Validate checks the declaration is usable: a name is required and every
// filtered argument must be one of Params.
func (o Operation) Validate() error {
	declared := make([]any, len(o.Params))
	for i, p := range o.Params {
		declared[i] = p
	}
	filter := func(params []string) error {
		return validation.Validate(params, validation.Each(validation.In(declared...).Error("is not a declared parameter")))
	}

	errs := validation.Errors{
		"name": validation.Validate(o.Name, validation.Required),
	}
	if o.Cacheable != nil {
		errs["cacheable.params"] = filter(o.Cacheable.Params)
	}
	for i, p := range o.Puts {
		errs[fmt.Sprintf("puts.%d.params", i)] = filter(p.Params)
	}
	for i, inv := range o.Invalidates {
		errs[fmt.Sprintf("invalidates.%d.params", i)] = filter(inv.Params)
	}

	if err := errs.Filter(); err != nil {
		return invalidOperationError(o.Name, err)
	}
	return nil
}
