// Package source provides built-in split sources.
//
// Split sources list the subjects a source reads, one split per subject.
// The package includes:
//
//   - Static: Fixed list of subjects
//   - StreamSubjects: Subjects currently holding messages in a JetStream stream
//
// Custom sources can be implemented by satisfying the types.SplitSource interface.
package source
