package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run the config tests outside GO_ENV=test; they connect
// to whatever DATABASE_URL the environment points at.
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr, "SAFETY CHECK FAILED: config tests must run with GO_ENV=test (current GO_ENV=%q)\n"+
			"Run them with: GO_ENV=test go test ./config/...\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
