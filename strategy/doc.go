// Package strategy provides built-in split assignment strategies.
//
// An assignment strategy maps every split to exactly one reader id. Splits are
// fixed subject addresses, so assignment is static and computed once when the
// enumerator starts or is restored.
//
//   - RoundRobin: even distribution over sorted reader ids (the default)
//   - ConsistentHash: xxh3 hash ring with virtual nodes; a split keeps its reader
//     when unrelated readers come and go
//
// Custom strategies can be implemented by satisfying the types.AssignmentStrategy interface.
package strategy
