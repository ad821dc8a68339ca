// Package intake discovers new work across the enabled sources (a local video
// folder, a local audio folder and a Google Drive inbox folder) and collapses
// the results to one Item per identity.
package intake
