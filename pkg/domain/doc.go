/*
Package domain contains the core data model of the MDSA orchestrator.

It defines the entities shared by every other package: domains, model
configurations, workflow states, plan tasks, knowledge documents and the
tagged request result. The package is kept pure and free of I/O so that the
router, the model lifecycle and the retrieval store can all depend on it
without depending on each other.

# Key Entities

  - Domain: A routable specialization (keywords, model, prompt settings).
  - ModelConfig: An immutable recipe describing how to load a model.
  - WorkflowState: A step of the per-request state machine.
  - Task: One step of a decomposed plan, with its dependencies.
  - Document: A unit of knowledge owned by exactly one corpus.
  - Result: The tagged outcome of processing a request.
*/
package domain
