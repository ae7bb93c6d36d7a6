// Package auth provides the page guard of the web application.
//
// Pages require the access token cookie. When only the refresh token is left
// the session is renewed through the Rotator first, a failed renewal redirects
// to the login page with the session expired notice. Visitors without any
// token are redirected to the login page. An authenticated visitor of the
// login page is sent to the profile page unless the notice was requested.
//
// Usage:
//
//	app.Use(authmiddleware.New(authmiddleware.Config{
//		Rotator:       deps.Rotator,
//		DefaultTenant: cfg.Upstream.DefaultTenant,
//		Public:        []string{cfg.Webserver.CheckAlivePath, cfg.Webserver.MetricsPath},
//	}))
//
// The same origin api, static files and the auth pages are never redirected.
package auth
