/*
Package mock provides mock implementations of interfaces for testing purposes.

The Fetcher and SecretsManagerClient can be used for running tests without
relying on infrastructure in AWS to be set up. The SecretCache wraps another
secretcache.SecretCache so that tests can introspect on how it is used.
*/
package mock
