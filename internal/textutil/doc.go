// Package textutil holds small string helpers shared by intake, executors
// and the CLI: item identity derivation and note titles.
package textutil
