// Package queueservice exposes a uniform queue abstraction (insert,
// read by key, list keys, list entries, delete) over one or more
// pluggable backing stores addressed through hash-style operations.
//
// A Service is built once from a map of backend configurations. At
// construction it registers each permitted identifier (logical group
// name) per backend, recording a first-seen timestamp in the reserved
// "registeredServices" meta-group; re-registration is idempotent and
// preserves the original timestamp. After construction the
// registration table is immutable and the Service is safe for
// concurrent use.
//
// Every operation fans out across the configured backends (optionally
// narrowed by Request.Stores), enforces identifier registration per
// backend, and aggregates per-backend results. Legs run independently:
// one backend failing does not stop the others, and the first leg
// error in deterministic backend order becomes the operation error,
// wrapped with the backend kind.
//
// # Quick Start
//
//	svc, err := queueservice.New(ctx, map[string]queueservice.BackendConfig{
//	    "redis": {
//	        Params:      backend.Params{"addr": "localhost:6379"},
//	        DisplayName: "orders-svc",
//	        Identifiers: []string{"orders"},
//	    },
//	})
//	if err != nil { ... }
//	defer svc.Close(ctx)
//
//	err = svc.Insert(ctx, queueservice.Request{Identifier: "orders", Key: "o1", Value: order})
//	values, err := svc.Get(ctx, queueservice.Request{Identifier: "orders", Key: "o1"})
//
// Backends register themselves on import; blank-import the backend
// packages you configure through Params:
//
//	import _ "github.com/bikramjeet/queue-service/backend/redis"
package queueservice
