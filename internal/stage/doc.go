// Package stage defines the pipeline's stage enumeration, intake kinds and
// the contract between the orchestrator and stage executors.
package stage
