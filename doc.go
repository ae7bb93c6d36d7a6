// Package main provides the entry point of GoIdentity-Admin.
// The start command runs a fiber web service that renders the login and profile
// pages, proxies the identity backend under a same origin api and manages the
// session cookies including transparent token refresh. The remaining commands
// talk to a running console with the session kept in a local cookie file.
package main
