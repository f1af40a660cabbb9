/*
Package ports defines the driven ports (interfaces) for the loom engine.

These interfaces decouple the orchestration core from external collaborators,
allowing the engine to work with any model provider, retrieval backend,
output transport, or durable store.

# Key Interfaces

  - ModelSession: an abstract LLM conversation capability (free-text and
    structured completions with bounded retries).
  - Retriever: the call contract of the retrieval/ranking subsystem.
  - OutputChannel: the response/status stream a run writes into.
  - KillStore: durable storage for cooperative kill-switch records.
  - ResumeStore: durable storage for paused-run resumption records.
*/
package ports
