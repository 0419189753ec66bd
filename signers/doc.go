// Package signers provides the SigningProvider variants the wallet manager
// multiplexes, and local backends for them.
//
// It offers two providers:
//   - Freighter: a browser extension with a persistent permission grant. Connect
//     detects the extension, checks and requests the grant, then fetches the key.
//   - Albedo: a global object injected by a separate extension or web service.
//     Every connect is itself the permission prompt.
//
// Both adapt an external API (FreighterAPI, AlbedoAPI) and normalize its
// failures into the errors package taxonomy before anything reaches the
// wallet manager. NewKeypairExtension and AlbedoFromCallback provide local
// backends for headless use and tests.
package signers
