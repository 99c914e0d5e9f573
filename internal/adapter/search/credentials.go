package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"

	"github.com/V4T54L/csv-indexer/internal/pkg/config"
)

// Auth is the resolved way the client authenticates against the cluster.
type Auth struct {
	Username       string
	Password       string
	Signer         *v4.Signer
	SigningService string
	SigningRegion  string
}

// CredentialSource describes where the search credentials come from.
type CredentialSource struct {
	Kind     string
	Username string
	Password string
	SecretID string
	Region   string
	Service  string

	SecretsManager secretsmanageriface.SecretsManagerAPI
	AWSCredentials *credentials.Credentials
}

type secretPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Resolve turns the credential source into concrete client auth.
func (s CredentialSource) Resolve(ctx context.Context) (Auth, error) {
	switch s.Kind {
	case config.CredentialNone:
		return Auth{}, nil

	case config.CredentialBasic:
		if s.Username == "" || s.Password == "" {
			return Auth{}, errors.New("basic credentials need a username and a password")
		}
		return Auth{Username: s.Username, Password: s.Password}, nil

	case config.CredentialSecretsManager:
		if s.SecretsManager == nil {
			return Auth{}, errors.New("secrets manager client is not configured")
		}
		out, err := s.SecretsManager.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(s.SecretID),
		})
		if err != nil {
			return Auth{}, fmt.Errorf("failed to read secret %s: %w", s.SecretID, err)
		}
		var payload secretPayload
		if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &payload); err != nil {
			return Auth{}, fmt.Errorf("secret %s is not a JSON credential pair: %w", s.SecretID, err)
		}
		if payload.Username == "" || payload.Password == "" {
			return Auth{}, fmt.Errorf("secret %s lacks username or password", s.SecretID)
		}
		return Auth{Username: payload.Username, Password: payload.Password}, nil

	case config.CredentialSigV4:
		if s.AWSCredentials == nil {
			return Auth{}, errors.New("AWS credentials are not configured")
		}
		service := s.Service
		if service == "" {
			service = "es"
		}
		return Auth{
			Signer:         v4.NewSigner(s.AWSCredentials),
			SigningService: service,
			SigningRegion:  s.Region,
		}, nil
	}

	return Auth{}, fmt.Errorf("unknown credential source %q", s.Kind)
}
