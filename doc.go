// Package splitsource provides a split-based, checkpoint-coordinated source over
// NATS JetStream durable pull consumers.
//
// A split is one subject. An enumerator assigns splits to readers; each reader runs
// one fetcher goroutine per split, each driving its own durable pull consumer.
// Fetched messages are acknowledged only after the checkpoint that covers them
// completes, so a restart from the last checkpoint replays exactly the
// unacknowledged messages.
//
// # Quick Start
//
//	cfg := splitsource.DefaultConfig()
//	cfg.URL = "nats://127.0.0.1:4222"
//	cfg.StreamName = "ORDERS"
//	cfg.Subjects = []string{"orders.eu", "orders.us"}
//
//	src, err := splitsource.NewSource[string](cfg, splitsource.StringDeserializer{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	enum, _ := src.CreateEnumerator(ctx)
//	rctx, _ := splitsource.NewLocalReaderContext(enum, "")
//	reader, _ := src.CreateReader(rctx)
//	assignments, _ := enum.Assign()
//
//	_ = reader.Start(ctx)
//	_ = reader.AddSplits(ctx, assignments[rctx.ReaderID()])
//	defer reader.Close(context.Background())
//
//	for {
//	    records, err := reader.Poll(ctx)
//	    // process records ...
//	    splits := reader.SnapshotState(checkpointID)
//	    // persist splits, then:
//	    err = reader.NotifyCheckpointComplete(ctx, checkpointID)
//	}
//
// # Architecture
//
// Enumerator states:
//
//	UNINITIALIZED → ASSIGNED, per split UNASSIGNED → ASSIGNED → RUNNING → FINISHED
//
// Split reader states:
//
//	UNASSIGNED → ASSIGNED → (FETCHING ⇄ IDLE) → CLOSED, with FINISHED in bounded mode
//
// Packages:
//   - connection: per-split connection pool with staleness detection
//   - subscription: single-split reader over a durable pull consumer
//   - fetcher: one fetcher goroutine per split and acknowledgment routing
//   - enumerator: split assignment and checkpoint snapshots
//   - serializer: versioned binary codecs for splits and snapshots
//   - checkpoint: snapshot persistence in a NATS KV bucket
//   - strategy, source: assignment strategies and split discovery
//
// See the examples/ directory for a complete working example.
package splitsource
