package testutil

import (
	"fmt"
	"os"
	"testing"
)

// CheckAWSEnvVarsForSecretsManager checks that the required environment
// variables are defined for testing against Secrets Manager. If any are
// missing, the test is skipped.
func CheckAWSEnvVarsForSecretsManager(t *testing.T) {
	CheckEnvVars(t,
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_REGION",
		"AWS_SECRET_ID",
	)
}

// CheckEnvVars checks that the required environment variables are set. If any
// are missing, the test is skipped.
func CheckEnvVars(t *testing.T, envVars ...string) {
	var missing []string

	for _, envVar := range envVars {
		if os.Getenv(envVar) == "" {
			missing = append(missing, envVar)
		}
	}

	if len(missing) > 0 {
		t.Skip(fmt.Sprintf("missing required AWS environment variables: %s", missing))
	}
}
