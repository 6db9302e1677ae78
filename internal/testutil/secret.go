package testutil

import (
	"os"
	"path"
	"strings"
	"testing"

	"github.com/evergreen-ci/utility"
)

const projectName = "secretcache"

// NewSecretName creates a new test secret name with a common prefix, the given
// test's name, and a random string.
func NewSecretName(t *testing.T) string {
	return path.Join(strings.TrimSuffix(SecretPrefix(), "/"), projectName, t.Name(), utility.RandomString())
}

// SecretPrefix returns the prefix name for secrets from the environment
// variable.
func SecretPrefix() string {
	return os.Getenv("AWS_SECRET_PREFIX")
}

// ExistingSecretID returns the ID of a secret that already exists in Secrets
// Manager for integration testing.
func ExistingSecretID() string {
	return os.Getenv("AWS_SECRET_ID")
}
