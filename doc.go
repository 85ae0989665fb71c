// Package kvgate is an HTTP gateway in front of a single key-value record
// table. A small family of handler variants share one control flow: route
// the request by method and path, validate the body, make exactly one storage
// call, and answer with a fixed JSON shape.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            cmd/kvgate               │  flags, config, HTTP server,
//	│   (mux, purge loop, shutdown)       │  ops listener (/metrics, /healthz)
//	└─────────────────────────────────────┘
//	           ↓ one Handler per variant
//	┌─────────────────────────────────────┐
//	│             handler                 │  Router, payload codec,
//	│  (route → validate → store → reply) │  expiry policy, responses
//	└─────────────────────────────────────┘
//	           ↓ storage.Store
//	┌─────────────────────────────────────┐
//	│             storage                 │  kvstore (NATS JetStream KV),
//	│     (Put, Get, Query, Purge)        │  sqlstore, boltstore, memstore
//	└─────────────────────────────────────┘
//
// # Variants
//
// A variant fixes the identifier field, the payload mode and the read
// operation. The built-in presets are:
//
//	client-id      POST /client_id/{id} stores a raw JSON payload with a 600s expiry;
//	               GET /{id} returns it
//	client-exists  existence-only records with a 600s expiry
//	topic          POST bodies must be {"topic": "..."}; no expiry
//	project-stats  GET /{project_id} counts matching records, capped at 5
//
// Several variants can be served by one process, each under its own mount
// path. See package config for the file format.
//
// # Failure Mapping
//
// Every read failure answers 404, whether the key is absent or the backend
// failed; the two are kept apart in logs and in the
// kvgate_requests_total outcome label. A rejected body answers 400 with the
// literal text "Invalid payload". Write failures and unsupported methods are
// infrastructure errors: 500 (405 for methods) with an empty body.
//
// # Storage Backends
//
// The production backend maps each table to a NATS JetStream KV bucket,
// optionally with a bucket-wide TTL. SQLite and bbolt are embedded
// alternatives. Every backend stores the expiry attribute as written, and the
// server's purge loop removes records once it has passed.
package kvgate
