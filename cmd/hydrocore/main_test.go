package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeTestConfig writes a minimal config into a temp dir and returns its path.
func writeTestConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: %d

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

security:
  jwt:
    secret: %q
`, filepath.Join(dir, "hydro.db"), port, testSecret)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// execute runs the CLI with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// ─── Config path ───

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins", "/etc/flag.yaml", "/etc/env.yaml", "/etc/flag.yaml"},
		{"env fallback", "", "/etc/env.yaml", "/etc/env.yaml"},
		{"default", "", "", defaultConfigPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnvVar, tt.env)
			o := &cliOptions{configPath: tt.flag}
			if got := o.resolveConfigPath(); got != tt.want {
				t.Errorf("resolveConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── serve ───

func TestRunServe_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runServe(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("runServe() should fail with invalid config path")
	}
}

func TestRunServe_MissingSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: ./x.db\n"), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("HYDRO_JWT_SECRET", "")

	err := runServe(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "jwt.secret") {
		t.Errorf("runServe() error = %v, want a jwt secret validation error", err)
	}
}

func TestRunServe_StartsAndStops(t *testing.T) {
	port := freePort(t)
	path := writeTestConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, path) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	healthy := false
	for time.Now().Before(deadline) {
		resp, err := http.Get(healthURL) //nolint:noctx // polling a local test server
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !healthy {
		cancel()
		t.Fatalf("server never became healthy at %s", healthURL)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runServe() did not return after cancellation")
	}
}

// ─── migrate ───

func TestMigrateCommands(t *testing.T) {
	path := writeTestConfig(t, 8000)

	out, err := execute(t, "", "--config", path, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("status before up = %q, want a pending migration", out)
	}

	if _, err := execute(t, "", "--config", path, "migrate", "up"); err != nil {
		t.Fatalf("migrate up error = %v", err)
	}

	out, err = execute(t, "", "--config", path, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	if !strings.Contains(out, "applied") || strings.Contains(out, "pending") {
		t.Errorf("status after up = %q, want only applied migrations", out)
	}

	if _, err := execute(t, "", "--config", path, "migrate", "down"); err != nil {
		t.Fatalf("migrate down error = %v", err)
	}
	out, _ = execute(t, "", "--config", path, "migrate", "status")
	if !strings.Contains(out, "pending") {
		t.Errorf("status after down = %q, want a pending migration", out)
	}
}

// ─── user ───

func TestUserCreate(t *testing.T) {
	path := writeTestConfig(t, 8000)

	out, err := execute(t, "grower-password\n", "--config", path, "user", "create", "grower", "--password-stdin")
	if err != nil {
		t.Fatalf("user create error = %v", err)
	}
	if !strings.Contains(out, "created user grower") {
		t.Errorf("output = %q, want confirmation", out)
	}

	if _, err := execute(t, "grower-password\n", "--config", path, "user", "create", "grower", "--password-stdin"); err == nil {
		t.Error("creating a duplicate username should fail")
	}
}

func TestUserCreate_Rejections(t *testing.T) {
	path := writeTestConfig(t, 8000)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"no password", "", []string{"user", "create", "grower", "--password-stdin"}},
		{"short password", "short\n", []string{"user", "create", "grower", "--password-stdin"}},
		{"missing username", "grower-password\n", []string{"user", "create", "--password-stdin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", path}, tt.args...)
			if _, err := execute(t, tt.stdin, args...); err == nil {
				t.Errorf("user create %v should fail", tt.args)
			}
		})
	}
}

func TestReadPassword_NonTerminal(t *testing.T) {
	got, err := readPassword(strings.NewReader("s3cret-pass\r\nignored\n"), &bytes.Buffer{}, false)
	if err != nil {
		t.Fatalf("readPassword() error = %v", err)
	}
	if got != "s3cret-pass" {
		t.Errorf("readPassword() = %q, want %q", got, "s3cret-pass")
	}
}
