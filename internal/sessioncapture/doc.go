// Package sessioncapture acquires a provider credential by watching an
// interactive browser login and capturing the session cookie it sets.
//
// It is meant for providers that authenticate through a web session and
// expose no token-issuing API. The flow opens an isolated browser session on
// the login page and resolves exactly once:
//   - with success, when a cookie matching the provider's allow-list appears
//     on the session domain and is saved to the sink
//   - with failure, when the window is closed, the sink rejects the secret,
//     or the context is cancelled
//
// There is no built-in timeout. Wrap the context with a deadline to bound
// the wait.
package sessioncapture
