/*
Package cache provides a SecretCache implementation that keeps secret values in
process memory.

BasicSecretCache evicts the least recently used secret once its configured
capacity is reached, and refetches a secret synchronously once it has been
cached for longer than the configured TTL. A single instance is meant to be
created once per process and shared by every caller, such as every invocation of
a Lambda function handler.
*/
package cache
