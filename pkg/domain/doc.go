/*
Package domain contains the core domain models of the triage engine.

It defines the entities shared by the authoring side (graph model, validator, history)
and the runtime side (execution engine, sessions). The package is kept pure and free of
I/O or persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - Node: a single step of a diagnostic procedure, with a kind-specific Payload.
  - Edge: a directed connection between two nodes, tagged with a Branch.
  - Document: the persisted/exported form of a workflow (metadata, nodes, edges, counter).
  - Answer: what an operator submits at a step; it maps to a canonical Branch.
  - ExecutionState: the runtime snapshot of a guided session (status, visited, trail).
*/
package domain
