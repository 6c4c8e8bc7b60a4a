// Package paramstore resolves secrets such as API tokens, either from AWS SSM
// Parameter Store or from the process environment.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrNotFound is returned when a parameter has no value.
var ErrNotFound = errors.New("paramstore: parameter not found")

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter resolves a named parameter to its value.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads SecureString parameters from SSM.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: %q missing value: %w", name, ErrNotFound)
	}
	return *out.Parameter.Value, nil
}

// Env maps parameter names to environment variables. Names without an entry
// in Vars are looked up directly.
type Env struct {
	Vars map[string]string
}

func (e Env) GetParameter(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	key := name
	if mapped, ok := e.Vars[name]; ok {
		key = mapped
	}
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("paramstore: env %s: %w", key, ErrNotFound)
	}
	return v, nil
}

// Chain tries each Getter in order and returns the first value found.
// Only ErrNotFound falls through; any other error stops the lookup.
type Chain []Getter

func (c Chain) GetParameter(ctx context.Context, name string) (string, error) {
	if len(c) == 0 {
		return "", errors.New("paramstore: empty chain")
	}
	var lastErr error
	for _, g := range c {
		v, err := g.GetParameter(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func boolPtr(b bool) *bool { return &b }
