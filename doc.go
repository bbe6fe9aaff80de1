/*
Package triage runs guided diagnostic procedures.

A procedure is a directed graph of steps (questions, decisions, instructions,
warnings, terminal diagnoses) authored as a JSON or YAML document. The Engine
walks the graph one answer at a time and keeps an audit trail of every step.

# Usage

	eng, err := triage.Load("printer.yaml")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	for !eng.Status().Terminal() {
		node, _ := eng.Current()
		fmt.Println(node.Title)
		// read an answer from the operator ...
		if err := eng.Answer(ctx, domain.ParseAnswer(input)); err != nil {
			fmt.Println(err)
		}
	}

Authoring lives in pkg/editor (undoable edits) and pkg/dsl (builder for code and
tests). Long lived sessions with persistence and locking live in pkg/session and
are exposed over HTTP (pkg/adapters/http) and MCP (pkg/adapters/mcp).
*/
package triage
