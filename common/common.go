package common

import (
	"os"
	"strings"
)

var (
	// ProjectID is the GCP project backing Firestore and logging.
	ProjectID string

	// Env is the deployment environment name (production, staging, localhost).
	Env string

	// Production flag indicating if the app is running the production backend.
	Production bool

	// IsLocalhost flag indicating if the app is running on a developer machine.
	IsLocalhost bool
)

const productionProject = "tunga-platform"

func init() {
	ProjectID = GetEnv("GOOGLE_CLOUD_PROJECT", "tunga-platform-dev")
	Env = GetEnv("APP_ENV", "localhost")
	Production = ProjectID == productionProject
	IsLocalhost = Env == "localhost"
}

// GetEnv returns the env var value for key, or fallback when unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

// CtxKeys are the gin context keys set by the auth middleware.
var CtxKeys = struct {
	UserID string
	Email  string
	Admin  string
}{
	UserID: "userId",
	Email:  "email",
	Admin:  "admin",
}

// Internal Tunga staff addresses. Invoices owed to these parties are never
// mirrored to the accounting system.
var internalAdminEmails = map[string]bool{
	"admin@tunga.io":   true,
	"bart@tunga.io":    true,
	"domieck@tunga.io": true,
}

// IsInternalAdminEmail reports whether the address belongs to a Tunga
// administrator account.
func IsInternalAdminEmail(email string) bool {
	return internalAdminEmails[strings.ToLower(email)]
}
