// Package app wires the license server together: store, lifecycle engine,
// admin operations, websocket hub, HTTP router and server.
//
// # Initialization Flow
//
//  1. Initialize OpenTelemetry (tracer, meter, Prometheus registry)
//  2. Open the configured license store (file, memory, postgres or redis)
//  3. Build the lifecycle engine and admin operations over the store
//  4. Build admin authentication and the session token issuer
//  5. Mount handlers behind the middleware chain and create the server
//
// # Usage
//
//	application, err := app.NewApplication(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run stops on SIGINT, SIGTERM or context cancellation. Stop drains
// in-flight requests, closes websocket observers and then closes the store,
// so every committed transition has been persisted before exit.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
