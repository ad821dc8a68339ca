// Package stageexec runs one stage executor for one item with the logging,
// timeout and panic handling every stage shares.
package stageexec
