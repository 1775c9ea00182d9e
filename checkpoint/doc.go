// Package checkpoint persists enumerator snapshots in a NATS KV bucket so a
// restarted source can restore its split set.
package checkpoint
