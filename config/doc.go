// Package config provides configuration loading for kvgate.
//
// Configuration is resolved once at process start: defaults, then each file
// layer (YAML, or JSON for .json files), then KVGATE_* environment
// overrides. The resulting Config is validated and passed into the handlers;
// request handling never reads the environment.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.yaml") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//
// # Example File
//
//	server:
//	  listen_addr: ":8080"
//	storage:
//	  backend: nats
//	  table_name: client-ids
//	  ttl: 10m
//	  nats:
//	    urls: ["nats://nats-1:4222", "nats://nats-2:4222"]
//	variants:
//	  - preset: client-id
//	  - preset: project-stats
//	    mount_path: /stats
//	    count_limit: 10
//
// A variant entry naming a preset starts from that built-in variant; any
// other field in the entry overrides it.
//
// # Environment Overrides
//
//	KVGATE_TABLE_NAME    storage.table_name (DDB_TABLE_NAME is honored too)
//	KVGATE_BACKEND       storage.backend: nats, sqlite, bolt or memory
//	KVGATE_NATS_URLS     comma separated storage.nats.urls
//	KVGATE_NATS_USERNAME, KVGATE_NATS_PASSWORD, KVGATE_NATS_TOKEN
//	KVGATE_SQLITE_PATH   storage.sqlite.path
//	KVGATE_BOLT_PATH     storage.bolt.path
//	KVGATE_LISTEN_ADDR   server.listen_addr
//	KVGATE_TTL           storage.ttl
//
// A missing table name fails validation with a fatal errors.ErrMissingConfig.
package config
