// Package reactor implements a transactional
// reactive-dataflow propagation core: a dependency graph of nodes
// (package graph), serialized into turns (package turn), driven by one of
// three interchangeable propagation engines (package engine), orchestrated
// per domain (package domain) and configured per domain from YAML (package
// config).
//
// A host wires concrete node types (embedding graph.NodeCore, implementing
// graph.Node and, for source values, graph.Input) into a graph with
// graph.Attach, constructs a Domain with NewDomain, and drives changes
// through it with Domain.Transact or Domain.TransactAsync. Building a
// Signal/Computed/Effect combinator layer on top of this package is
// intentionally left to the host; the cell node type in package domain's
// tests shows the lowest-level wiring such a layer would sit on.
package reactor
