// Package config defines the YAML-shaped configuration surface for a
// domain (§6, §8): which propagation engine it runs, how turns are
// serialized, and whether input merging is permitted. Grounded on the
// teacher's own yaml.v3 indirect dependency and on the "stdlib core,
// YAML-configured adapters" split used throughout the reference corpus.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineKind selects a domain's propagation strategy.
type EngineKind string

const (
	ToposortSeq EngineKind = "toposort_seq"
	ToposortPar EngineKind = "toposort_par"
	Pulsecount  EngineKind = "pulsecount"
	Subtree     EngineKind = "subtree"
)

// TransactionMode selects a domain's turn-manager implementation (§10,
// supplemented from original_source/EngineBase.h's ETransactionMode).
type TransactionMode string

const (
	// Exclusive serializes turns with an ExclusiveManager (FIFO + merge).
	Exclusive TransactionMode = "exclusive"
	// None uses a NoneManager: no serialization, for domains the host
	// already guarantees are single-writer.
	None TransactionMode = "none"
)

// Concurrency is the per-turn dispatch tag a domain runs its engine under.
type Concurrency string

const (
	Sequential           Concurrency = "sequential"
	SequentialConcurrent Concurrency = "sequential_concurrent"
	ParallelConcurrent   Concurrency = "parallel_concurrent"
)

// Domain is the full configuration of one domain.
type Domain struct {
	Name            string          `yaml:"name"`
	InputMerging    bool            `yaml:"input_merging"`
	TransactionMode TransactionMode `yaml:"transaction_mode"`
	Engine          EngineKind      `yaml:"engine"`
	Concurrency     Concurrency     `yaml:"concurrency"`
	PoolConcurrency int             `yaml:"pool_concurrency"`
}

// Default returns the conservative baseline: exclusive turns, sequential
// toposort, no input merging, unbounded pool concurrency.
func Default(name string) Domain {
	return Domain{
		Name:            name,
		InputMerging:    false,
		TransactionMode: Exclusive,
		Engine:          ToposortSeq,
		Concurrency:     Sequential,
	}
}

// Load reads and validates a Domain from a YAML file.
func Load(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	d := Default("")
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &d, nil
}

// Validate rejects illegal combinations at load time rather than at first
// transaction (§6): a sequential-only engine paired with parallel
// dispatch, or an unknown enum value.
func (d Domain) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch d.Engine {
	case ToposortSeq, ToposortPar, Pulsecount, Subtree:
	default:
		return fmt.Errorf("unknown engine %q", d.Engine)
	}

	switch d.TransactionMode {
	case Exclusive, None:
	default:
		return fmt.Errorf("unknown transaction_mode %q", d.TransactionMode)
	}

	switch d.Concurrency {
	case Sequential, SequentialConcurrent, ParallelConcurrent:
	default:
		return fmt.Errorf("unknown concurrency %q", d.Concurrency)
	}

	if d.Engine == ToposortSeq && d.Concurrency == ParallelConcurrent {
		return fmt.Errorf("engine %q cannot run under concurrency %q", d.Engine, d.Concurrency)
	}
	if d.PoolConcurrency < 0 {
		return fmt.Errorf("pool_concurrency must be >= 0, got %d", d.PoolConcurrency)
	}

	return nil
}
