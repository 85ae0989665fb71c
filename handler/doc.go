// Package handler implements the kvgate request handler family.
//
// A Handler serves one Variant: it routes a request by method and path,
// validates the body, attaches an expiry, performs exactly one call on a
// storage.Store, and maps the outcome onto a small JSON response.
//
//	Received → Routed → Validated → Stored | Fetched | Counted | Rejected → Responded
//
// Variants are data. The built-in Presets cover the observed family:
//
//	client-id      POST /client_id/<id> stores the raw body with a 600s expiry;
//	               GET /<id> returns {"client_id": "exists", "payload": <body>}
//	client-exists  same paths, existence-only records
//	topic          POST validates {"topic": string}; GET /<topic> checks existence
//	project-stats  POST /<job_id> with {"project_id": string};
//	               GET /<project_id> returns {"stats": "<n>"}, n capped at 5
//
// A shape write without a path key is keyed by the body's field only when
// that field is the variant's id field, as for topic. A keyless project-stats
// write is rejected as an invalid payload.
//
// Read failures of every kind answer 404 with {"<id>": "doesn't exist"}. The
// handler still tells absence and backend failure apart in its logs and in
// the outcome label of kvgate_requests_total. Write backend failures and
// unsupported methods are returned as errors and never produce a body.
//
// Handler implements http.Handler; mount it under the variant's Mount path
// with http.StripPrefix.
package handler
