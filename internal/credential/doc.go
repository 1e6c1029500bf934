// Package credential holds the vocabulary shared by the credential acquisition
// flows: the uniform Outcome contract, the Sink that persists an acquired
// secret, and the Clock used for settle delays and poll spacing.
//
// Both flows return an Outcome rather than an error. A Failure carries a
// human-readable reason only; callers should display it, not branch on it.
package credential
