// Package http implements the HTTP handlers of the license server. Handlers
// are a thin layer between the chi router and the services package: they
// decode and validate requests, call a service, and render the result.
//
// # Endpoints
//
//	GET|POST /api/v1/verify                    client verification and heartbeat
//	POST     /api/v1/release                   graceful release of a binding
//	POST     /api/v1/admin/login               exchange credentials for a token
//	         /api/v1/admin/licenses[/{key}]    create, read, extend, expire,
//	                                           unbind, rename and delete
//	GET      /api/v1/admin/export              stored snapshot, byte for byte
//	GET      /api/v1/admin/report.{xlsx,csv}   license report download
//	GET      /api/v1/admin/events              websocket lifecycle feed
//	GET      /api/health[/live|/ready]         health probes
//	GET      /api/version, /, /metrics
//
// # Error Handling
//
// Every failure is rendered as an RFC 7807 problem document by
// errors.ErrorHandler:
//
//	{
//	    "type": "/errors/license/not-found",
//	    "title": "License Not Found",
//	    "status": 404,
//	    "detail": "license key not found",
//	    "instance": "/api/v1/admin/licenses/ABC123"
//	}
//
// Verification denials (unknown key, expired, in use, scope mismatch) are not
// failures. They are answered with 200 and valid=false so plugins can tell a
// refused license from an unreachable server.
package http
