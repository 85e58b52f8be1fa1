// Package sim provides the core stochastic propagation engine for seed-fate
// recruitment models.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - stage.go: the stage tree (Direct/Caster/Success/Sink nodes, hierarchical ids)
//   - casting.go: empirical stochastic transition tables and their registry
//   - engine.go: the bootstrap Monte Carlo propagation loop and run state machine
//
// checker.go validates a tree and registry together (fail-fast structural
// pass, collected row-sum warnings), and codec.go maps the model onto a flat
// persisted record stream and back.
//
// # Architecture
//
// The sim package owns the model and the engine; the surrounding concerns
// live in sub-packages:
//   - sim/modelfile/: YAML model documents (the editor-collaborator exchange format)
//   - sim/report/: output matrix, per-stage summary statistics, TSV/HTML rendering
//
// A run consumes a checked *Tree, a *Registry, Params, and a seeded
// *rand.Rand, and produces a lazy sequence of report.Row values. Everything
// is single-threaded and cooperative: cancellation is a context observed at
// iteration boundaries only.
package sim
