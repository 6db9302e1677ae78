package secret

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/evergreen-ci/secretcache/awsutil"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// BasicSecretsManagerClient provides a secretcache.SecretsManagerClient
// implementation that wraps the Secrets Manager API. It supports retrying
// requests using exponential backoff and jitter.
type BasicSecretsManagerClient struct {
	awsutil.BaseClient
	sm *secretsmanager.Client
}

// NewBasicSecretsManagerClient creates a new Secrets Manager client from the
// given options.
func NewBasicSecretsManagerClient(ctx context.Context, opts awsutil.ClientOptions) (*BasicSecretsManagerClient, error) {
	c := &BasicSecretsManagerClient{
		BaseClient: awsutil.NewBaseClient(opts),
	}
	if err := c.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up client")
	}

	return c, nil
}

func (c *BasicSecretsManagerClient) setup(ctx context.Context) error {
	if c.sm != nil {
		return nil
	}

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "initializing config")
	}

	c.sm = secretsmanager.NewFromConfig(*cfg)

	return nil
}

// GetSecretValue gets the decrypted value of an existing secret.
func (c *BasicSecretsManagerClient) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	if err := c.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up client")
	}

	var out *secretsmanager.GetSecretValueOutput
	var err error
	msg := awsutil.MakeAPILogMessage("GetSecretValue", in)
	if err := utility.Retry(ctx, func() (bool, error) {
		out, err = c.sm.GetSecretValue(ctx, in)
		if err != nil {
			grip.Debug(message.WrapError(err, msg))
			return !isNonRetryableError(err), err
		}
		return false, nil
	}, c.GetRetryOptions()); err != nil {
		return nil, err
	}

	return out, nil
}

// Close closes the client and cleans up its resources.
func (c *BasicSecretsManagerClient) Close(ctx context.Context) error {
	return c.BaseClient.Close(ctx)
}

// isNonRetryableError returns whether the error from Secrets Manager cannot
// succeed if the same request is tried again.
func isNonRetryableError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case (&types.ResourceNotFoundException{}).ErrorCode(),
		(&types.InvalidParameterException{}).ErrorCode(),
		(&types.InvalidRequestException{}).ErrorCode(),
		(&types.DecryptionFailure{}).ErrorCode(),
		errCodeAccessDenied:
		return true
	default:
		return false
	}
}
