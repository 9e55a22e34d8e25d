// Package portal talks to the SEI case-management Portal over plain HTTP.
//
// A session starts with Challenge, which fetches the login page (following
// redirects by hand) and returns its hidden fields, cookies and optional
// captcha image. Authenticate posts the credentials as a Windows-1252 form,
// replays the redirect chain while accumulating cookies, and extracts the
// case listing from whichever markup generation the Portal serves. Detail
// fetches the history page of a single case.
//
// Markup differences between Portal installations live in Profile, which can
// be loaded from YAML or TOML. Failures are reported as typed errors:
// TransportError, EncodingError and AuthRejectedError.
package portal
