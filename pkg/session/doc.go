/*
Package session runs guided executions that outlive a single request.

A Manager compiles workflow documents into graphs (cached per document), drives the
execution engine for one answer at a time and persists the resulting state. Work on a
given session is serialised by a reference-counted local mutex and, optionally, a
distributed lock so several replicas can share one store.
*/
package session
