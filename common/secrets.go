package common

import "context"

// secretAccessor is satisfied by secretmanager.AccessSecretLatestVersion;
// injected as a var so config tests never reach for GCP.
var secretAccessor func(ctx context.Context, name string) ([]byte, error)

// RegisterSecretAccessor wires the Secret Manager fetcher used by
// production config loading. Called once from cmd/main.
func RegisterSecretAccessor(fn func(ctx context.Context, name string) ([]byte, error)) {
	secretAccessor = fn
}

func loadSecrets(ctx context.Context, cfg *Config) error {
	for _, s := range []struct {
		name string
		dst  interface{}
	}{
		{"stripe", &cfg.Stripe},
		{"payoneer", &cfg.Payoneer},
		{"ledger", &cfg.Ledger},
		{"sendgrid", &cfg.Sendgrid},
	} {
		data, err := secretAccessor(ctx, s.name)
		if err != nil {
			return err
		}

		if err := unmarshalSecret(data, s.dst); err != nil {
			return err
		}
	}

	return nil
}
