/*
Package secretcache provides interfaces for in-process caching of secret values
retrieved from a secrets storage service. Secrets are kept in memory so that
repeated lookups do not require a network call, while bounding both how stale a
returned value may be and how many secrets are held at once.

The SecretCache interface is the entry point for callers. The cache package
provides the BasicSecretCache implementation, which combines an LRU eviction
scheme with a per-secret TTL and synchronous refresh.

The Fetcher interface is the collaborator that a SecretCache calls when it needs
a fresh value. The secret package provides a Fetcher backed by AWS Secrets
Manager, along with the SecretsManagerClient that wraps the Secrets Manager API.
*/
package secretcache
