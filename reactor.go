// Package reactor re-exports the orchestrator-facing types of the
// propagation core — graph nodes, turns, domains, and engine selection —
// under one import path, the way the teacher's own root package (sig.go)
// re-exported its internal signal/computed/effect types as a thin public
// facade over package internal.
package reactor

import (
	"github.com/AnatoleLucet/reactor/config"
	"github.com/AnatoleLucet/reactor/domain"
	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/turn"
)

// Node is the engine-visible capability set every reactive value exposes.
type Node = graph.Node

// Dynamic is implemented by nodes allowed to change their predecessor set
// during their own Tick.
type Dynamic = graph.Dynamic

// Input is a node with no predecessors that publishes staged values.
type Input = graph.Input

// Core is the embeddable scratch-field struct every concrete Node embeds.
type Core = graph.NodeCore

// Attach and Detach wire and unwire predecessor/successor edges between
// nodes.
var (
	Attach = graph.Attach
	Detach = graph.Detach
)

// Turn is one serialized unit of change within a domain.
type Turn = turn.Turn

// TurnFlags are the admission flags a turn is created with.
type TurnFlags = turn.Flags

// ObserverHandle is anything that can be told to detach.
type ObserverHandle = turn.ObserverHandle

// Domain is one reactive-dataflow domain.
type Domain = domain.Domain

// DomainOption customizes a Domain beyond its config.Domain.
type DomainOption = domain.Option

// Registry maps domain names to live Domain instances for cross-domain
// continuation dispatch.
type Registry = domain.Registry

// TransactFunc is a domain transaction's user closure.
type TransactFunc = domain.TransactFunc

// NewDomain constructs a Domain from cfg and any options.
func NewDomain(name string, cfg config.Domain, opts ...DomainOption) (*Domain, error) {
	return domain.New(name, cfg, opts...)
}

// NewRegistry constructs an empty cross-domain Registry.
func NewRegistry() *Registry {
	return domain.NewRegistry()
}

// WithLogger and WithRegistry are the DomainOption constructors most hosts
// need; WithClock is exposed directly off package domain for tests.
var (
	WithLogger   = domain.WithLogger
	WithRegistry = domain.WithRegistry
)

// Config is the YAML-shaped per-domain configuration.
type Config = config.Domain

// DefaultConfig returns the conservative baseline configuration for a
// domain named name: exclusive turns, sequential toposort, no merging.
func DefaultConfig(name string) Config {
	return config.Default(name)
}

// LoadConfig reads and validates a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
