package interceptor

import (
	"context"
	"log/slog"
	"slices"

	"github.com/goliatone/go-cacheable/cache"
)

// Plan is the resolved, immutable form of an Operation. It is built on first
// dispatch and reused for the life of the Dispatcher.
type Plan struct {
	Operation string

	// ReadEligible is false for void operations, for operations without a
	// Cacheable declaration and when no cache name could be resolved.
	ReadEligible bool
	Atomic       bool
	// CacheNames is the read chain, consulted in order.
	CacheNames   []string
	KeyGenerator string

	Puts        []Step
	Invalidates []Step

	readKey keySpec
}

// Step is one resolved put or invalidate declaration.
type Step struct {
	CacheNames   []string
	KeyGenerator string
	Async        bool
	// All is only meaningful for invalidations.
	All bool

	key keySpec
}

type keySpec struct {
	gen cache.KeyGenerator
	// indexes of the arguments that feed the key; nil selects all of them
	params []int
}

func (k keySpec) generate(operation string, args []any) any {
	if k.params == nil {
		return k.gen.GenerateKey(operation, args...)
	}
	selected := make([]any, 0, len(k.params))
	for _, i := range k.params {
		if i < len(args) {
			selected = append(selected, args[i])
		}
	}
	return k.gen.GenerateKey(operation, selected...)
}

// HasWrites reports whether the plan declares any put or invalidate step.
func (p *Plan) HasWrites() bool {
	return len(p.Puts) > 0 || len(p.Invalidates) > 0
}

func (p *Plan) key(args []any) any {
	return p.readKey.generate(p.Operation, args)
}

func (s Step) keyFor(operation string, args []any) any {
	return s.key.generate(operation, args)
}

// Plan returns the memoized plan for a registered operation, building it on
// first use. Failed builds are not memoized.
func (d *Dispatcher) Plan(name string) (*Plan, error) {
	if p, ok := d.plans.Load(name); ok {
		return p, nil
	}
	op, ok := d.operations.Load(name)
	if !ok {
		return nil, unknownOperationError(name)
	}

	p, err := d.buildPlan(op)
	if err != nil {
		return nil, err
	}
	// concurrent builders produce equivalent plans, keep whichever landed first
	actual, _ := d.plans.LoadOrStore(name, p)
	return actual, nil
}

func (d *Dispatcher) buildPlan(op Operation) (*Plan, error) {
	p := &Plan{Operation: op.Name}

	if op.Cacheable != nil && !op.Void {
		names := d.cacheNames(op, op.Cacheable.CacheNames)
		if len(names) == 0 {
			d.logger.LogAttrs(context.Background(), slog.LevelWarn,
				"no cache names defined for operation, skipping cache reads",
				slog.String("operation", op.Name))
		} else {
			gen, key, err := d.keySpec(op, op.Cacheable.KeyGenerator, op.Cacheable.Params)
			if err != nil {
				return nil, err
			}
			p.ReadEligible = true
			p.Atomic = op.Cacheable.Atomic
			p.CacheNames = names
			p.KeyGenerator = gen
			p.readKey = key
		}
	}

	if !op.Void {
		for _, put := range op.Puts {
			names := d.cacheNames(op, put.CacheNames)
			if len(names) == 0 {
				continue
			}
			gen, key, err := d.keySpec(op, put.KeyGenerator, put.Params)
			if err != nil {
				return nil, err
			}
			p.Puts = append(p.Puts, Step{CacheNames: names, KeyGenerator: gen, Async: put.Async, key: key})
		}
	}

	for _, inv := range op.Invalidates {
		names := d.cacheNames(op, inv.CacheNames)
		if len(names) == 0 {
			continue
		}
		step := Step{CacheNames: names, Async: inv.Async, All: inv.All}
		if !inv.All {
			gen, key, err := d.keySpec(op, inv.KeyGenerator, inv.Params)
			if err != nil {
				return nil, err
			}
			step.KeyGenerator = gen
			step.key = key
		}
		p.Invalidates = append(p.Invalidates, step)
	}

	return p, nil
}

// cacheNames falls back from the declaration to the operation config and then
// to the dispatcher defaults.
func (d *Dispatcher) cacheNames(op Operation, declared []string) []string {
	switch {
	case len(declared) > 0:
		return slices.Clone(declared)
	case len(op.Config.CacheNames) > 0:
		return slices.Clone(op.Config.CacheNames)
	default:
		return slices.Clone(d.defaultCacheNames)
	}
}

func (d *Dispatcher) keySpec(op Operation, declared string, params []string) (string, keySpec, error) {
	name := declared
	if name == "" {
		name = op.Config.KeyGenerator
	}
	if name == "" {
		name = d.defaultKeyGenerator
	}
	if name == "" {
		name = cache.DefaultKeyGeneratorName
	}

	gen, err := d.keys.Resolve(name)
	if err != nil {
		return "", keySpec{}, err
	}

	spec := keySpec{gen: gen}
	if len(params) > 0 {
		spec.params = make([]int, 0, len(params))
		for i, declared := range op.Params {
			if slices.Contains(params, declared) {
				spec.params = append(spec.params, i)
			}
		}
	}
	return name, spec, nil
}
