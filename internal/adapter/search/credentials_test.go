package search

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"

	"github.com/V4T54L/csv-indexer/internal/pkg/config"
)

type mockSecrets struct {
	secretsmanageriface.SecretsManagerAPI
	secret string
	err    error
	asked  string
}

func (m *mockSecrets) GetSecretValueWithContext(ctx aws.Context, in *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	m.asked = aws.StringValue(in.SecretId)
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(m.secret)}, nil
}

func TestCredentialSource_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("None", func(t *testing.T) {
		auth, err := CredentialSource{Kind: config.CredentialNone}.Resolve(ctx)
		if err != nil || auth.Username != "" || auth.Signer != nil {
			t.Fatalf("expected empty auth, got %+v, %v", auth, err)
		}
	})

	t.Run("Basic", func(t *testing.T) {
		auth, err := CredentialSource{Kind: config.CredentialBasic, Username: "admin", Password: "pw"}.Resolve(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth.Username != "admin" || auth.Password != "pw" {
			t.Errorf("unexpected auth %+v", auth)
		}
	})

	t.Run("Basic Incomplete", func(t *testing.T) {
		if _, err := (CredentialSource{Kind: config.CredentialBasic, Username: "admin"}).Resolve(ctx); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("Secrets Manager", func(t *testing.T) {
		sm := &mockSecrets{secret: `{"username":"indexer","password":"s3cr3t"}`}
		auth, err := CredentialSource{Kind: config.CredentialSecretsManager, SecretID: "search/creds", SecretsManager: sm}.Resolve(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sm.asked != "search/creds" {
			t.Errorf("expected secret search/creds to be read, got %q", sm.asked)
		}
		if auth.Username != "indexer" || auth.Password != "s3cr3t" {
			t.Errorf("unexpected auth %+v", auth)
		}
	})

	t.Run("Secrets Manager Malformed", func(t *testing.T) {
		sm := &mockSecrets{secret: `admin:pw`}
		if _, err := (CredentialSource{Kind: config.CredentialSecretsManager, SecretID: "x", SecretsManager: sm}).Resolve(ctx); err == nil {
			t.Fatal("expected an error for a non-JSON secret")
		}
	})

	t.Run("Secrets Manager Failure", func(t *testing.T) {
		sm := &mockSecrets{err: errors.New("access denied")}
		if _, err := (CredentialSource{Kind: config.CredentialSecretsManager, SecretID: "x", SecretsManager: sm}).Resolve(ctx); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("SigV4", func(t *testing.T) {
		auth, err := CredentialSource{
			Kind:           config.CredentialSigV4,
			Region:         "eu-west-1",
			AWSCredentials: credentials.NewStaticCredentials("id", "secret", ""),
		}.Resolve(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth.Signer == nil || auth.SigningService != "es" || auth.SigningRegion != "eu-west-1" {
			t.Errorf("unexpected auth %+v", auth)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := (CredentialSource{Kind: "ldap"}).Resolve(ctx); err == nil {
			t.Fatal("expected an error")
		}
	})
}
