/*
Package secret provides the Secrets Manager implementations used to fill a
secret cache.

SecretsManagerFetcher is a secretcache.Fetcher that reads secret values from
Secrets Manager and classifies its failures so that callers can tell a missing
secret apart from a permissions problem or an outage.

The BasicSecretsManagerClient provides a convenience wrapper around the Secrets
Manager API that retries failed requests. If the SecretsManagerFetcher does not
fulfill your needs, you can make calls directly to the Secrets Manager API
instead.
*/
package secret
