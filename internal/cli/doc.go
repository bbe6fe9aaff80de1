// Package cli holds the logic behind the triage commands: building stores from
// configuration, the interactive runner and report printing.
package cli
