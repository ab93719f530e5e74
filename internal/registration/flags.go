package registration

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/octobees/signup/internal/storage"
)

// DeploymentFlags gate the optional steps of the registration form.
type DeploymentFlags struct {
	EmailVerificationRequired bool
	ChallengeRequired         bool
	// ChallengeSiteKey is only set when ChallengeRequired is true.
	ChallengeSiteKey string
}

// ParseFlags derives flags from a cached status blob. Absent or malformed
// blobs disable every optional step.
func ParseFlags(blob []byte) DeploymentFlags {
	if len(blob) == 0 || !gjson.ValidBytes(blob) {
		return DeploymentFlags{}
	}
	status := gjson.ParseBytes(blob)
	if !status.IsObject() {
		return DeploymentFlags{}
	}
	if data := status.Get("data"); data.IsObject() {
		status = data
	}

	flags := DeploymentFlags{
		EmailVerificationRequired: status.Get("email_verification").Type == gjson.True,
	}
	if status.Get("turnstile_check").Type == gjson.True {
		flags.ChallengeRequired = true
		flags.ChallengeSiteKey = status.Get("turnstile_site_key").String()
	}
	return flags
}

// LoadFlags reads the status blob cached under storage.KeyStatus.
func LoadFlags(ctx context.Context, store storage.Store) DeploymentFlags {
	if store == nil {
		return DeploymentFlags{}
	}
	blob, err := store.Get(ctx, storage.KeyStatus)
	if err != nil {
		return DeploymentFlags{}
	}
	return ParseFlags([]byte(blob))
}
