// Package deviceflow implements the OAuth 2.0 device authorization grant
// (RFC 8628) for providers that offer it, persisting the resulting access
// token through a credential.Sink.
//
// The client deviates from a strict RFC reading in a few provider-driven ways:
//   - Requests use JSON bodies with Accept: application/json (GitHub answers
//     form-encoded requests with form-encoded bodies otherwise)
//   - The poll interval never drops below 5 seconds, whatever the server advertises
//   - A slow_down signal adds one fixed 5 second wait before the next poll
//   - Non-success HTTP statuses while polling are transient, unless the body
//     carries a recognized protocol error
//
// # Usage
//
//	client := deviceflow.NewClient(deviceflow.Provider{
//	  ID:       "copilot",
//	  Endpoint: github.Endpoint,
//	  ClientID: "Iv1.b507a08c87ecfe98",
//	  Scope:    "read:user",
//	}, sink)
//	outcome := client.Login(ctx, func(userCode, verificationURI string) {
//	  fmt.Printf("Enter %s at %s\n", userCode, verificationURI)
//	})
//
// Run always returns a terminal credential.Outcome; errors and panics inside
// the flow are converted into failures. Cancel ctx to abandon an attempt.
package deviceflow
