package secret

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/evergreen-ci/secretcache"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

const (
	// DefaultVersionStage is the staging label of the secret version that is
	// fetched unless otherwise specified.
	DefaultVersionStage = "AWSCURRENT"

	errCodeAccessDenied = "AccessDeniedException"
)

// SecretsManagerFetcher provides a secretcache.Fetcher implementation backed
// by AWS Secrets Manager.
type SecretsManagerFetcher struct {
	client       secretcache.SecretsManagerClient
	versionStage string
	versionID    string
}

// SecretsManagerFetcherOptions are options to create a SecretsManagerFetcher.
type SecretsManagerFetcherOptions struct {
	// Client is the Secrets Manager client used to fetch secrets.
	Client secretcache.SecretsManagerClient
	// VersionStage is the staging label of the secret version to fetch.
	// Defaults to DefaultVersionStage.
	VersionStage *string
	// VersionID pins the fetch to a specific secret version. It cannot be set
	// together with VersionStage.
	VersionID *string
}

// NewSecretsManagerFetcherOptions returns new uninitialized options to create
// a SecretsManagerFetcher.
func NewSecretsManagerFetcherOptions() *SecretsManagerFetcherOptions {
	return &SecretsManagerFetcherOptions{}
}

// SetClient sets the client used to fetch secrets.
func (o *SecretsManagerFetcherOptions) SetClient(c secretcache.SecretsManagerClient) *SecretsManagerFetcherOptions {
	o.Client = c
	return o
}

// SetVersionStage sets the staging label of the secret version to fetch.
func (o *SecretsManagerFetcherOptions) SetVersionStage(stage string) *SecretsManagerFetcherOptions {
	o.VersionStage = &stage
	return o
}

// SetVersionID sets the ID of the secret version to fetch.
func (o *SecretsManagerFetcherOptions) SetVersionID(id string) *SecretsManagerFetcherOptions {
	o.VersionID = &id
	return o
}

// Validate checks that the required parameters are given and sets defaults
// for unspecified options.
func (o *SecretsManagerFetcherOptions) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(o.Client == nil, "must specify a client")
	catcher.NewWhen(o.VersionStage != nil && o.VersionID != nil, "cannot specify both a version stage and a version ID")
	catcher.NewWhen(o.VersionStage != nil && *o.VersionStage == "", "version stage cannot be empty if specified")
	catcher.NewWhen(o.VersionID != nil && *o.VersionID == "", "version ID cannot be empty if specified")
	if catcher.HasErrors() {
		return catcher.Resolve()
	}

	if o.VersionStage == nil && o.VersionID == nil {
		o.SetVersionStage(DefaultVersionStage)
	}

	return nil
}

// NewSecretsManagerFetcher creates a new fetcher backed by Secrets Manager.
func NewSecretsManagerFetcher(opts SecretsManagerFetcherOptions) (*SecretsManagerFetcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	return &SecretsManagerFetcher{
		client:       opts.Client,
		versionStage: utility.FromStringPtr(opts.VersionStage),
		versionID:    utility.FromStringPtr(opts.VersionID),
	}, nil
}

// Fetch gets the current value of the secret identified by ID, which may be
// either the secret's name or its ARN. If the fetch fails, the error is a
// *secretcache.FetchError describing why.
func (f *SecretsManagerFetcher) Fetch(ctx context.Context, id string) (*secretcache.SecretValue, error) {
	if id == "" {
		return nil, secretcache.NewFetchError(secretcache.FetchErrorInvalidRequest, id, errors.New("must specify a secret ID"))
	}

	in := &secretsmanager.GetSecretValueInput{
		SecretId: utility.ToStringPtr(id),
	}
	if f.versionID != "" {
		in.VersionId = utility.ToStringPtr(f.versionID)
	} else {
		in.VersionStage = utility.ToStringPtr(f.versionStage)
	}

	out, err := f.client.GetSecretValue(ctx, in)
	if err != nil {
		return nil, secretcache.NewFetchError(classifyError(err), id, err)
	}
	if out == nil {
		return nil, secretcache.NewFetchError(secretcache.FetchErrorServiceInternal, id, errors.New("Secrets Manager returned no output"))
	}

	return &secretcache.SecretValue{
		ARN:           utility.FromStringPtr(out.ARN),
		Name:          utility.FromStringPtr(out.Name),
		SecretString:  utility.FromStringPtr(out.SecretString),
		SecretBinary:  out.SecretBinary,
		VersionID:     utility.FromStringPtr(out.VersionId),
		VersionStages: out.VersionStages,
		CreatedDate:   utility.FromTimePtr(out.CreatedDate),
	}, nil
}

// classifyError determines the kind of fetch failure from the error returned
// by Secrets Manager. Any error that is not identified as a permanent failure
// is treated as transient.
func classifyError(err error) secretcache.FetchErrorKind {
	var notFound *types.ResourceNotFoundException
	var decryptionFailure *types.DecryptionFailure
	var internal *types.InternalServiceError
	var invalidRequest *types.InvalidRequestException
	var invalidParam *types.InvalidParameterException
	switch {
	case errors.As(err, &notFound):
		return secretcache.FetchErrorNotFound
	case errors.As(err, &decryptionFailure):
		return secretcache.FetchErrorAccessDenied
	case errors.As(err, &internal):
		return secretcache.FetchErrorServiceInternal
	case errors.As(err, &invalidRequest), errors.As(err, &invalidParam):
		return secretcache.FetchErrorInvalidRequest
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied:
			return secretcache.FetchErrorAccessDenied
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return secretcache.FetchErrorServiceInternal
		}
	}

	return secretcache.FetchErrorTransient
}
