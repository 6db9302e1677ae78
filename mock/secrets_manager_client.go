package mock

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/evergreen-ci/utility"
)

const (
	// VersionStageCurrent is the staging label for the current version of a
	// secret.
	VersionStageCurrent = "AWSCURRENT"
	// VersionStagePrevious is the staging label for the version of a secret
	// that was current before the latest update.
	VersionStagePrevious = "AWSPREVIOUS"
)

// StoredSecret is a representation of a secret kept in the global secret
// storage cache.
type StoredSecret struct {
	// For the sake of simplicity, the secret ARN is synonymous with the secret
	// name.
	Name         string
	Value        string
	BinaryValue  []byte
	VersionID    string
	Previous     *StoredSecretVersion
	IsDeleted    bool
	Created      time.Time
	LastUpdated  time.Time
	LastAccessed time.Time
	Deleted      time.Time
}

// StoredSecretVersion is a prior version of a stored secret's value.
type StoredSecretVersion struct {
	Value       string
	BinaryValue []byte
	VersionID   string
	Created     time.Time
}

func (s StoredSecret) current() StoredSecretVersion {
	return StoredSecretVersion{
		Value:       s.Value,
		BinaryValue: s.BinaryValue,
		VersionID:   s.VersionID,
		Created:     s.LastUpdated,
	}
}

// findVersion returns the version of the secret matching the given version ID
// or staging label. If neither is given, it returns the current version.
func (s StoredSecret) findVersion(versionID, versionStage string) (StoredSecretVersion, string, bool) {
	switch {
	case versionID != "":
		if versionID == s.VersionID {
			return s.current(), VersionStageCurrent, true
		}
		if s.Previous != nil && versionID == s.Previous.VersionID {
			return *s.Previous, VersionStagePrevious, true
		}
		return StoredSecretVersion{}, "", false
	case versionStage == "" || versionStage == VersionStageCurrent:
		return s.current(), VersionStageCurrent, true
	case versionStage == VersionStagePrevious && s.Previous != nil:
		return *s.Previous, VersionStagePrevious, true
	default:
		return StoredSecretVersion{}, "", false
	}
}

// GlobalSecretCache is a global secret storage cache that provides a simplified
// in-memory implementation of a secrets storage service. This can be used
// indirectly with the SecretsManagerClient to access and modify secrets, or
// used directly. Direct access must not happen concurrently with the
// SecretsManagerClient.
var GlobalSecretCache map[string]StoredSecret

// globalSecretCacheMu guards access to GlobalSecretCache from
// SecretsManagerClient operations.
var globalSecretCacheMu sync.Mutex

func init() {
	ResetGlobalSecretCache()
}

// ResetGlobalSecretCache resets the global fake secret storage cache to an
// initialized but clean state.
func ResetGlobalSecretCache() {
	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	GlobalSecretCache = map[string]StoredSecret{}
}

func newAPIError(code, msg string) error {
	return &smithy.GenericAPIError{
		Code:    code,
		Message: msg,
		Fault:   smithy.FaultClient,
	}
}

// SecretsManagerClient provides a mock implementation of a
// secretcache.SecretsManagerClient. This makes it possible to introspect on
// inputs to the client and control the client's output. It provides some
// default implementations where possible. By default, it will issue the API
// calls to the fake GlobalSecretCache. It is safe for concurrent use.
type SecretsManagerClient struct {
	mu sync.Mutex

	CreateSecretInput  *secretsmanager.CreateSecretInput
	CreateSecretOutput *secretsmanager.CreateSecretOutput
	CreateSecretError  error

	GetSecretValueInput  *secretsmanager.GetSecretValueInput
	GetSecretValueOutput *secretsmanager.GetSecretValueOutput
	GetSecretValueError  error
	GetSecretValueCount  int

	UpdateSecretInput  *secretsmanager.UpdateSecretInput
	UpdateSecretOutput *secretsmanager.UpdateSecretOutput
	UpdateSecretError  error

	DeleteSecretInput  *secretsmanager.DeleteSecretInput
	DeleteSecretOutput *secretsmanager.DeleteSecretOutput
	DeleteSecretError  error

	CloseError error
}

// CreateSecret saves the input options and returns a new mock secret. The mock
// output can be customized. By default, it will create and save a cached mock
// secret based on the input in the global secret cache.
func (c *SecretsManagerClient) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CreateSecretInput = in

	if c.CreateSecretOutput != nil || c.CreateSecretError != nil {
		return c.CreateSecretOutput, c.CreateSecretError
	}

	if in.Name == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("missing secret name")}
	}
	if in.SecretBinary != nil && in.SecretString != nil {
		return nil, &types.InvalidParameterException{Message: aws.String("cannot specify both secret binary and secret string")}
	}
	if in.SecretBinary == nil && in.SecretString == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("must specify either secret binary or secret string")}
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	name := utility.FromStringPtr(in.Name)
	if s, ok := GlobalSecretCache[name]; ok && !s.IsDeleted {
		return nil, &types.ResourceExistsException{Message: aws.String("secret already exists")}
	}

	ts := time.Now()
	s := StoredSecret{
		Name:         name,
		Value:        utility.FromStringPtr(in.SecretString),
		BinaryValue:  in.SecretBinary,
		VersionID:    utility.RandomString(),
		Created:      ts,
		LastUpdated:  ts,
		LastAccessed: ts,
	}
	GlobalSecretCache[s.Name] = s

	return &secretsmanager.CreateSecretOutput{
		ARN:       utility.ToStringPtr(s.Name),
		Name:      utility.ToStringPtr(s.Name),
		VersionId: utility.ToStringPtr(s.VersionID),
	}, nil
}

// GetSecretValue saves the input options and returns an existing mock secret's
// value. The mock output can be customized. By default, it will return a cached
// mock secret if it exists in the global secret cache.
func (c *SecretsManagerClient) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GetSecretValueInput = in
	c.GetSecretValueCount++

	if c.GetSecretValueOutput != nil || c.GetSecretValueError != nil {
		return c.GetSecretValueOutput, c.GetSecretValueError
	}

	if in.SecretId == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("missing secret ID")}
	}
	if in.VersionId != nil && in.VersionStage != nil {
		return nil, &types.InvalidParameterException{Message: aws.String("cannot specify both version ID and version stage")}
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	id := utility.FromStringPtr(in.SecretId)
	s, ok := GlobalSecretCache[id]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	if s.IsDeleted {
		return nil, &types.InvalidRequestException{Message: aws.String("secret is deleted")}
	}

	v, stage, ok := s.findVersion(utility.FromStringPtr(in.VersionId), utility.FromStringPtr(in.VersionStage))
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret version not found")}
	}

	s.LastAccessed = time.Now()
	GlobalSecretCache[id] = s

	return &secretsmanager.GetSecretValueOutput{
		ARN:           utility.ToStringPtr(s.Name),
		Name:          utility.ToStringPtr(s.Name),
		SecretString:  utility.ToStringPtr(v.Value),
		SecretBinary:  v.BinaryValue,
		VersionId:     utility.ToStringPtr(v.VersionID),
		VersionStages: []string{stage},
		CreatedDate:   utility.ToTimePtr(v.Created),
	}, nil
}

// UpdateSecretValue saves the input options and returns an updated mock secret
// value. The mock output can be customized. By default, it will update a cached
// mock secret if it exists in the global secret cache, keeping the replaced
// value as the previous version.
func (c *SecretsManagerClient) UpdateSecretValue(ctx context.Context, in *secretsmanager.UpdateSecretInput) (*secretsmanager.UpdateSecretOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.UpdateSecretInput = in

	if c.UpdateSecretOutput != nil || c.UpdateSecretError != nil {
		return c.UpdateSecretOutput, c.UpdateSecretError
	}

	if in.SecretId == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("missing secret ID")}
	}
	if in.SecretBinary != nil && in.SecretString != nil {
		return nil, &types.InvalidParameterException{Message: aws.String("cannot specify both secret binary and secret string")}
	}
	if in.SecretBinary == nil && in.SecretString == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("must specify either secret binary or secret string")}
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	id := utility.FromStringPtr(in.SecretId)
	s, ok := GlobalSecretCache[id]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	if s.IsDeleted {
		return nil, &types.InvalidRequestException{Message: aws.String("secret is deleted")}
	}

	prev := s.current()
	s.Previous = &prev
	s.Value = utility.FromStringPtr(in.SecretString)
	s.BinaryValue = in.SecretBinary
	s.VersionID = utility.RandomString()

	ts := time.Now()
	s.LastAccessed = ts
	s.LastUpdated = ts

	GlobalSecretCache[id] = s

	return &secretsmanager.UpdateSecretOutput{
		ARN:       utility.ToStringPtr(s.Name),
		Name:      utility.ToStringPtr(s.Name),
		VersionId: utility.ToStringPtr(s.VersionID),
	}, nil
}

// DeleteSecret saves the input options and deletes an existing mock secret. The
// mock output can be customized. By default, it will mark the cached mock
// secret as deleted if it exists.
func (c *SecretsManagerClient) DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput) (*secretsmanager.DeleteSecretOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.DeleteSecretInput = in

	if c.DeleteSecretOutput != nil || c.DeleteSecretError != nil {
		return c.DeleteSecretOutput, c.DeleteSecretError
	}

	if in.SecretId == nil {
		return nil, &types.InvalidParameterException{Message: aws.String("missing secret ID")}
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	id := utility.FromStringPtr(in.SecretId)
	s, ok := GlobalSecretCache[id]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}

	ts := time.Now()
	s.LastAccessed = ts
	s.LastUpdated = ts
	s.Deleted = ts
	s.IsDeleted = true
	GlobalSecretCache[id] = s

	return &secretsmanager.DeleteSecretOutput{
		ARN:          utility.ToStringPtr(s.Name),
		Name:         utility.ToStringPtr(s.Name),
		DeletionDate: utility.ToTimePtr(s.Deleted),
	}, nil
}

// NewAccessDeniedError returns an error resembling the one Secrets Manager
// returns when the caller lacks permission to read a secret.
func NewAccessDeniedError() error {
	return newAPIError("AccessDeniedException", "not authorized to perform secretsmanager:GetSecretValue")
}

// Close closes the mock client. The mock output can be customized. By default,
// it is a no-op that returns no error.
func (c *SecretsManagerClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CloseError != nil {
		return c.CloseError
	}
	return nil
}
