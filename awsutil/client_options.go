package awsutil

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// ClientOptions represent AWS client options such as authentication and making
// requests. Any option that is not given is resolved from the default AWS
// configuration chain (e.g. environment variables in a Lambda function).
type ClientOptions struct {
	// Config is a preconfigured AWS config to use instead of constructing one
	// from the rest of the options. If Config is specified, the credentials,
	// role, region, and HTTP client options are ignored.
	Config *aws.Config
	// CredsProvider provides the credentials to access the API directly, or to
	// authenticate to STS to retrieve temporary credentials to access the API
	// (if Role is specified).
	CredsProvider aws.CredentialsProvider
	// Role is the STS role that should be used to perform authorized actions.
	Role *string
	// Region is the geographical region where API calls should be made.
	Region *string
	// RetryOpts sets the retry policy for API requests.
	RetryOpts *utility.RetryOptions
	// HTTPClient is the HTTP client to use to make requests.
	HTTPClient *http.Client
	// DisableTracing turns off OpenTelemetry instrumentation of API calls.
	DisableTracing bool

	ownsHTTPClient bool
}

// NewClientOptions returns new unconfigured client options.
func NewClientOptions() *ClientOptions {
	return &ClientOptions{}
}

// SetConfig sets a preconfigured AWS config.
func (o *ClientOptions) SetConfig(cfg aws.Config) *ClientOptions {
	o.Config = &cfg
	return o
}

// SetCredentialsProvider sets the client's credentials provider.
func (o *ClientOptions) SetCredentialsProvider(creds aws.CredentialsProvider) *ClientOptions {
	o.CredsProvider = creds
	return o
}

// SetRole sets the client's role to assume.
func (o *ClientOptions) SetRole(role string) *ClientOptions {
	o.Role = &role
	return o
}

// SetRegion sets the client's geographical region.
func (o *ClientOptions) SetRegion(region string) *ClientOptions {
	o.Region = &region
	return o
}

// SetRetryOptions sets the client's retry options.
func (o *ClientOptions) SetRetryOptions(opts utility.RetryOptions) *ClientOptions {
	o.RetryOpts = &opts
	return o
}

// SetHTTPClient sets the HTTP client to use.
func (o *ClientOptions) SetHTTPClient(hc *http.Client) *ClientOptions {
	o.HTTPClient = hc
	return o
}

// SetDisableTracing sets whether API calls are instrumented with
// OpenTelemetry.
func (o *ClientOptions) SetDisableTracing(disable bool) *ClientOptions {
	o.DisableTracing = disable
	return o
}

// Validate checks that the options are valid and sets defaults for
// unspecified options.
func (o *ClientOptions) Validate() error {
	if o.Role != nil && *o.Role == "" {
		return errors.New("role cannot be empty if specified")
	}
	if o.Region != nil && *o.Region == "" {
		return errors.New("region cannot be empty if specified")
	}

	if o.HTTPClient == nil {
		o.HTTPClient = utility.GetHTTPClient()
		o.ownsHTTPClient = true
	}

	if o.RetryOpts == nil {
		o.RetryOpts = &utility.RetryOptions{}
	}
	o.RetryOpts.Validate()

	return nil
}

// GetConfig builds the authenticated config to perform authorized API
// actions. The config is built once and reused afterwards.
func (o *ClientOptions) GetConfig(ctx context.Context) (*aws.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, o.loadOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "loading default config")
	}

	if o.Role != nil {
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), *o.Role))
	}

	if !o.DisableTracing {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}

	o.Config = &cfg

	return o.Config, nil
}

func (o *ClientOptions) loadOptions() []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if o.Region != nil {
		opts = append(opts, config.WithRegion(*o.Region))
	}
	if o.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(o.HTTPClient))
	}
	if o.CredsProvider != nil {
		opts = append(opts, config.WithCredentialsProvider(o.CredsProvider))
	}
	return opts
}

// Close cleans up the HTTP client if it is owned by these options.
func (o *ClientOptions) Close() {
	if o.ownsHTTPClient && o.HTTPClient != nil {
		utility.PutHTTPClient(o.HTTPClient)
		o.HTTPClient = nil
		o.ownsHTTPClient = false
	}
}
