package registration

import (
	"context"
	"testing"

	"github.com/octobees/signup/internal/storage"
)

func TestParseFlags(t *testing.T) {
	tests := map[string]struct {
		blob string
		want DeploymentFlags
	}{
		"empty": {
			blob: "",
			want: DeploymentFlags{},
		},
		"malformed": {
			blob: `{"email_verification":tru`,
			want: DeploymentFlags{},
		},
		"not an object": {
			blob: `"status"`,
			want: DeploymentFlags{},
		},
		"email only": {
			blob: `{"email_verification":true,"turnstile_check":false,"turnstile_site_key":"ignored"}`,
			want: DeploymentFlags{EmailVerificationRequired: true},
		},
		"challenge": {
			blob: `{"email_verification":false,"turnstile_check":true,"turnstile_site_key":"0x4AAA"}`,
			want: DeploymentFlags{ChallengeRequired: true, ChallengeSiteKey: "0x4AAA"},
		},
		"status envelope": {
			blob: `{"success":true,"message":"","data":{"email_verification":true,"turnstile_check":true,"turnstile_site_key":"k"}}`,
			want: DeploymentFlags{EmailVerificationRequired: true, ChallengeRequired: true, ChallengeSiteKey: "k"},
		},
		"string booleans are not trusted": {
			blob: `{"email_verification":"true","turnstile_check":"yes"}`,
			want: DeploymentFlags{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ParseFlags([]byte(tt.blob)); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestLoadFlags(t *testing.T) {
	ctx := context.Background()

	if got := LoadFlags(ctx, nil); got != (DeploymentFlags{}) {
		t.Fatalf("expected disabled flags without store, got %+v", got)
	}
	if got := LoadFlags(ctx, failingStore{}); got != (DeploymentFlags{}) {
		t.Fatalf("expected disabled flags on store error, got %+v", got)
	}

	store := storage.NewMemoryStore()
	if got := LoadFlags(ctx, store); got != (DeploymentFlags{}) {
		t.Fatalf("expected disabled flags when absent, got %+v", got)
	}
	store.Set(ctx, storage.KeyStatus, `{"turnstile_check":true,"turnstile_site_key":"site"}`)
	if got := LoadFlags(ctx, store); !got.ChallengeRequired || got.ChallengeSiteKey != "site" {
		t.Fatalf("unexpected flags: %+v", got)
	}
}
