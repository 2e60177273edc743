// package server hosts the short-lived local HTTP endpoint for the OAuth
// authorization code flow. The auth command starts it, the provider redirects
// the browser to it once, and it hands the exchanged token back over a
// channel.
package server
