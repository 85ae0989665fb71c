// Package natsclient wraps the NATS Go client with connection lifecycle
// management and the JetStream Key-Value operations kvgate's production
// storage backend is built on.
//
// # Connection Lifecycle
//
// A Client moves through Disconnected → Connecting → Connected, and into
// Reconnecting whenever the server drops. The underlying nats.Conn handles
// reconnection itself; the Client tracks status, logs the transitions, and
// invokes the optional disconnect and reconnect callbacks.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("kvgate"),
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithReconnectWait(2*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// Close drains the connection, bounded by the drain timeout, and clears any
// credentials held by the Client. A closed Client cannot be reconnected.
//
// # Key-Value Buckets
//
// CreateKeyValueBucket binds an existing bucket or creates it, tolerating the
// race where another process creates the same bucket concurrently:
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket:  "records",
//	    TTL:     10 * time.Minute,
//	    History: 1,
//	})
//	kv := client.NewKVStore(bucket)
//
//	rev, err := kv.Put(ctx, "abc", data)
//	entry, err := kv.Get(ctx, "abc")
//	if natsclient.IsKVNotFoundError(err) {
//	    // absent, deleted or expired
//	}
//
// Every KVStore operation is bounded by the store's timeout (default 5s).
// Values larger than MaxValueSize are rejected before they reach the server.
//
// # Testing
//
// TestClient starts a JetStream-enabled NATS server in a container through
// testcontainers-go:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("records"))
//	kv, err := tc.CreateKVBucket(ctx, "records")
//
// Integration tests using it are skipped unless INTEGRATION_TESTS is set.
package natsclient
