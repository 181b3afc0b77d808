// Package main hosts the hydroingest CLI entrypoint and command graph.
//
// "run" ingests the inbound directory once and "watch" keeps polling it.
// "inspect" decodes a single measurement file without touching the store,
// while the ledger, store and preflight commands report on past runs and the
// environment. Configuration is resolved once per invocation in
// PersistentPreRunE; commands annotated with skipConfigLoad manage the
// configuration file themselves.
package main
