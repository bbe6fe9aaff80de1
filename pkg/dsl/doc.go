/*
Package dsl provides a fluent builder for constructing Triage workflow documents in Go.

It is the programmatic counterpart of the JSON/YAML document format: handy for tests,
generated procedures and examples, where spelling out nodes and edges by hand is noisy.

Example usage:

	doc := dsl.New("printer-offline").
		Start("1", "Printer shows offline").
		Question("2", "Is the network cable plugged in?", "Check the port at the back.").
		Yes("3").No("4").
		End("3", "Restart the print spooler").Outcome(domain.OutcomeResolved).
		End("4", "Plug the cable in").Outcome(domain.OutcomeResolved).
		Link("1", "2").
		Document()

	engine, err := triage.New(doc)

Node order in the resulting document follows declaration order, which is the order the
validator and the engine use to pick an entry point.
*/
package dsl
