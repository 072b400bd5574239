package tours

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// ResetTokenBytes is the amount of entropy in a reset token
	ResetTokenBytes = 32
	// ResetTokenTTL is how long a reset token stays valid
	ResetTokenTTL = 10 * time.Minute
)

// ResetToken is a freshly minted password reset token. Plain only ever
// leaves the process inside the reset email; Hash is what gets stored.
type ResetToken struct {
	Plain   string
	Hash    string
	Expires time.Time
}

// NewResetToken mints a reset token valid for ResetTokenTTL from now
func NewResetToken(now time.Time) (ResetToken, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	plain := hex.EncodeToString(buf)
	return ResetToken{
		Plain:   plain,
		Hash:    HashResetToken(plain),
		Expires: now.Add(ResetTokenTTL).UTC(),
	}, nil
}

// HashResetToken returns the hex sha256 digest of a plain reset token
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
