package matineerest

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/savaki/secrets"
)

// ProducerSecret holds the shared token producers present on the broadcast
// ingress.
type ProducerSecret struct {
	Token string `json:"token"`
}

// SecretName returns the Secrets Manager name for the given environment.
func SecretName(env string) string {
	return env + "-matinee-push--producer-token"
}

// LoadProducerToken fetches the producer token from Secrets Manager.
func LoadProducerToken(s *session.Session, env string) (string, error) {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return "", fmt.Errorf("failed to initialize secrets: %w", err)
	}

	var secret ProducerSecret
	if err := manager.Decode(SecretName(env), &secret); err != nil {
		return "", fmt.Errorf("failed to load secret %v: %v", SecretName(env), err)
	}
	return secret.Token, nil
}
