/*
Package ports defines the driven ports (interfaces) of the Triage core.

The core never performs I/O. Documents and execution sessions reach storage through
these interfaces, which the adapters under pkg/adapters implement.

# Key Interfaces

  - DocumentStore: persists workflow documents keyed by (name, folder).
  - SessionStore: persists execution sessions keyed by session id.
  - DistributedLocker: coordinates access to a session across replicas.

RunDocumentStoreContract and RunSessionStoreContract are reusable test suites every
adapter runs against itself.
*/
package ports
