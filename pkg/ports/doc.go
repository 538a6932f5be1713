/*
Package ports defines the driven ports (interfaces) of the MDSA orchestrator.

These interfaces decouple the orchestration core from concrete model runtimes
and storage backends, so the same router, registry and retrieval store can run
against an in-memory backend in tests and against Ollama, Redis or SQLite in
production.

# Key Interfaces

  - ModelBackend: Loads models and produces LoadedModel handles that generate text.
  - Embedder: Turns text into vectors for intent routing.
  - DocumentStore: Persists knowledge documents behind the retrieval store.
  - ConversationStore: Keeps session chat history between requests.
  - DistributedLocker: Coordinates model loads and session turns across replicas.
*/
package ports
