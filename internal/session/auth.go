package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type demoAccount struct {
	email    string
	name     string
	role     string
	password string
}

var demoAccounts = []demoAccount{
	{email: "admin@bekasberkah.id", name: "Admin BekasBerkah", role: "admin", password: "admin123"},
	{email: "user@bekasberkah.id", name: "Pengguna Demo", role: "user", password: "user123"},
}

// demoHashes are computed on first use so importing the package stays cheap.
var demoHashes = sync.OnceValue(func() map[string][]byte {
	hashes := make(map[string][]byte, len(demoAccounts))
	for _, a := range demoAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("Failed to hash demo password", "email", a.email, "error", err)
			continue
		}
		hashes[a.email] = hash
	}
	return hashes
})

// Login checks email and password against the demo accounts and signs the
// matching account in. The cached profile keeps its other fields.
func (b *Bridge) Login(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var account *demoAccount
	for i := range demoAccounts {
		if demoAccounts[i].email == email {
			account = &demoAccounts[i]
			break
		}
	}
	if account == nil {
		b.logger.Warn("Login failed: unknown account", "email", email)
		return ErrInvalidCredentials
	}

	hash, ok := demoHashes()[account.email]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		b.logger.Warn("Login failed: wrong password", "email", email)
		return ErrInvalidCredentials
	}

	profile := b.LoadProfile()
	profile.Email = account.email
	profile.Name = account.name
	return b.SignIn(ctx, profile, account.role)
}
