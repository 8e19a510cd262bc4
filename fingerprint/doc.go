// Package fingerprint derives a stable device identity from low-entropy
// request signals and resolves the real client network origin behind
// forwarding proxies and CDNs. The resulting hash binds a bearer token to the
// device profile that created the session without storing any raw identifying
// data.
package fingerprint
