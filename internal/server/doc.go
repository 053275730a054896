// Package server assembles and runs the chat backend.
//
// Two values split the work:
//   - App holds the request side: the fixed middleware pipeline (JSON body
//     decoding, cookie decoding, CORS for trusted origins) followed by an
//     ordered dispatch table whose first matching rule answers.
//   - Server holds the process side: it validates configuration, binds the
//     listener, serves App, and only then connects the database in the
//     background. A bind failure or a database failure is fatal; a cancelled
//     context is a clean stop.
//
// Dispatch order:
//
//	/api/auth/*       auth group
//	/api/messages/*   messages group
//	/api/status       lifecycle state
//	/api/health       database liveness
//	/metrics          Prometheus exposition (when enabled)
//	/socket           realtime websocket
//	static file       served when it exists or the path has an extension
//	any GET or HEAD   index document, status 200
//	anything else     404
//
// Usage:
//
//	store, _ := backend.New(cfg)
//	app := server.NewApp(cfg, store, logger)
//	srv := server.New(cfg, app, logger)
//	err := srv.Run(ctx) // nil on cancellation
package server
