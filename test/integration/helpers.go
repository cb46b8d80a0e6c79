//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	URL         string
	Username    string
	Password    string
	QuetzalPath string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		URL:         os.Getenv("QUETZAL_URL"),
		Username:    os.Getenv("QUETZAL_USER"),
		Password:    os.Getenv("QUETZAL_PASSWORD"),
		QuetzalPath: getQuetzalPath(),
		Verbose:     os.Getenv("QUETZAL_TEST_VERBOSE") == "true",
	}
}

// getQuetzalPath determines the path to the quetzal binary
func getQuetzalPath() string {
	if path := os.Getenv("QUETZAL_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../quetzal", "./quetzal", "../quetzal"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "quetzal"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.URL == "" || config.Username == "" || config.Password == "" {
		t.Skip("QUETZAL_URL, QUETZAL_USER and QUETZAL_PASSWORD must be set, skipping integration test")
	}

	if _, err := exec.LookPath(config.QuetzalPath); err != nil {
		t.Skipf("quetzal binary not found at %s, skipping integration test", config.QuetzalPath)
	}
}

// CommandRunner runs quetzal commands with the test credentials.
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	return &CommandRunner{config: config, t: t}
}

// Run executes a quetzal command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command(runner.config.QuetzalPath, args...) // #nosec G204
	cmd.Env = append(os.Environ(),
		"QUETZAL_URL="+runner.config.URL,
		"QUETZAL_USER="+runner.config.Username,
		"QUETZAL_PASSWORD="+runner.config.Password,
	)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: quetzal %s", strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON executes a quetzal command with JSON output and decodes it.
func (runner *CommandRunner) RunJSON(out interface{}, args ...string) error {
	stdout, stderr, err := runner.Run(append(args, "--output", "json")...)
	if err != nil {
		return fmt.Errorf("quetzal %s: %w: %s", strings.Join(args, " "), err, stderr)
	}

	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		return fmt.Errorf("decoding output of quetzal %s: %w", strings.Join(args, " "), err)
	}

	return nil
}

// GenerateTestName creates a unique workspace name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().Unix())
}

// CleanupWorkspace deletes a test workspace, logging failures.
func (runner *CommandRunner) CleanupWorkspace(id int64) {
	stdout, stderr, err := runner.Run("workspace", "delete", "--id", fmt.Sprint(id))
	if err != nil {
		runner.t.Logf("Cleanup warning for workspace %d: %s\nStderr: %s", id, stdout, stderr)
	}
}
