// Package services is the business layer between the HTTP handlers and the
// license state machine. It converts wire contracts into license package calls
// and license results back into wire contracts.
//
// # Services
//
//	LicenseService  public verify/heartbeat and release
//	AdminService    privileged license management, export and reports
//	AuthService     admin login issuing session tokens
//	HealthService   liveness, readiness (store ping) and version
//
// Each service is an interface so handlers can be tested against testify
// mocks. Implementations take their collaborators through constructors:
//
//	lifecycle := license.NewLifecycle(store, opts...)
//	svc := services.NewLicenseService(lifecycle, logger)
//
// Errors are returned unchanged from the license package so the transport
// layer can map them with errors.Is.
package services
