// Package config defines the gateway configuration model and its YAML
// loading pipeline: parse, apply defaults, validate, then optionally
// override from SMARTGATE_* environment variables.
//
// ProjectConfig values are immutable after load. The file watcher never
// mutates a loaded configuration; it produces a complete new snapshot
// that the pipeline swaps in atomically, so a reload can never change
// the behavior of a request already in flight.
package config
