package app

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestHashPassword(t *testing.T) {
	password := "MySecurePassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	// Check hash format
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("Hash should start with $argon2id$v=19$, got: %s", hash)
	}

	// Hash should be different each time (different salt)
	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed on second call: %v", err)
	}

	if hash == hash2 {
		t.Error("Two hashes of same password should be different (different salts)")
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "MySecurePassword123"
	wrongPassword := "WrongPassword456"

	// Create hash
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{
			name:     "Correct password",
			password: password,
			hash:     hash,
			want:     true,
			wantErr:  false,
		},
		{
			name:     "Wrong password",
			password: wrongPassword,
			hash:     hash,
			want:     false,
			wantErr:  false,
		},
		{
			name:     "Invalid hash format",
			password: password,
			hash:     "invalid",
			want:     false,
			wantErr:  true,
		},
		{
			name:     "Wrong algorithm",
			password: password,
			hash:     "$bcrypt$v=1$m=65536,t=1,p=4$salt$hash",
			want:     false,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateAuthFile(t *testing.T) {
	// Create temp directory
	tmpDir := t.TempDir()
	authFile := filepath.Join(tmpDir, "auth.secret")

	username := "testuser"
	password := "TestPassword123456"

	// Test creating new file
	t.Run("Create new file", func(t *testing.T) {
		err := CreateAuthFile(authFile, username, password, false)
		if err != nil {
			t.Fatalf("CreateAuthFile() failed: %v", err)
		}

		// Verify file permissions
		info, err := os.Stat(authFile)
		if err != nil {
			t.Fatalf("Failed to stat auth file: %v", err)
		}
		if info.Mode().Perm() != 0400 {
			t.Errorf("Expected file mode 0400 (read-only), got %o", info.Mode().Perm())
		}

		// Verify content format
		content, err := os.ReadFile(authFile)
		if err != nil {
			t.Fatalf("Failed to read auth file: %v", err)
		}

		line := strings.TrimSpace(string(content))
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			t.Fatal("Auth file should contain username:hash")
		}

		if parts[0] != username {
			t.Errorf("Expected username %s, got %s", username, parts[0])
		}

		if !strings.HasPrefix(parts[1], "$argon2id$") {
			t.Error("Hash should be Argon2id format")
		}

		// Verify password can be verified
		match, err := VerifyPassword(password, parts[1])
		if err != nil {
			t.Fatalf("VerifyPassword() failed: %v", err)
		}
		if !match {
			t.Error("Password verification failed for created hash")
		}
	})

	// Test overwrite with flag
	t.Run("Overwrite with flag", func(t *testing.T) {
		err := CreateAuthFile(authFile, "newuser", "NewPassword123456", true)
		if err != nil {
			t.Fatalf("CreateAuthFile() with overwrite failed: %v", err)
		}

		content, _ := os.ReadFile(authFile)
		if !strings.HasPrefix(string(content), "newuser:") {
			t.Error("File should be overwritten with new username")
		}
	})
}

func TestLoadAuthenticator(t *testing.T) {
	tests := []struct {
		name        string
		setupFile   func(string) error
		wantUser    string
		wantErr     bool
		wantEnabled bool
	}{
		{
			name: "Valid auth file",
			setupFile: func(path string) error {
				hash, _ := HashPassword("TestPassword123456")
				return os.WriteFile(path, []byte("testuser:"+hash), 0600)
			},
			wantUser:    "testuser",
			wantEnabled: true,
		},
		{
			name: "File not exists (dev mode)",
			setupFile: func(path string) error {
				return nil // Don't create file
			},
		},
		{
			name: "Invalid format (missing colon)",
			setupFile: func(path string) error {
				return os.WriteFile(path, []byte("invalidformat"), 0600)
			},
			wantErr: true,
		},
		{
			name: "Invalid format (empty)",
			setupFile: func(path string) error {
				return os.WriteFile(path, []byte(""), 0600)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authFile := filepath.Join(t.TempDir(), "auth.secret")

			if err := tt.setupFile(authFile); err != nil {
				t.Fatalf("Setup failed: %v", err)
			}

			a, err := LoadAuthenticator(authFile, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadAuthenticator() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if a.user != tt.wantUser {
				t.Errorf("user = %s, want %s", a.user, tt.wantUser)
			}
			if a.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", a.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestResolveAuthFile(t *testing.T) {
	got, err := ResolveAuthFile("/etc/signup/auth.secret")
	if err != nil || got != "/etc/signup/auth.secret" {
		t.Errorf("ResolveAuthFile(configured) = %q, %v", got, err)
	}

	got, err = ResolveAuthFile("")
	if err != nil {
		t.Fatalf("ResolveAuthFile() failed: %v", err)
	}
	if filepath.Base(got) != DefaultAuthFile {
		t.Errorf("Expected default file name %s, got %s", DefaultAuthFile, got)
	}
}

func TestRequire(t *testing.T) {
	// Setup test handler
	testHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}

	// Create a valid hash for testing
	password := "TestPassword123456"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to create test hash: %v", err)
	}
	protected := &Authenticator{user: "admin", hash: []byte(hash), log: zap.NewNop()}

	tests := []struct {
		name           string
		auth           *Authenticator
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Valid credentials",
			auth:           protected,
			authHeader:     "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:"+password)),
			expectedStatus: http.StatusOK,
			expectedBody:   "success",
		},
		{
			name:           "Invalid password",
			auth:           protected,
			authHeader:     "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrongpassword")),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}` + "\n",
		},
		{
			name:           "Invalid username",
			auth:           protected,
			authHeader:     "Basic " + base64.StdEncoding.EncodeToString([]byte("wronguser:"+password)),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}` + "\n",
		},
		{
			name:           "No auth header",
			auth:           protected,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}` + "\n",
		},
		{
			name:           "Dev mode (no auth file)",
			auth:           &Authenticator{log: zap.NewNop()},
			expectedStatus: http.StatusOK,
			expectedBody:   "success",
		},
		{
			name:           "Nil authenticator",
			expectedStatus: http.StatusOK,
			expectedBody:   "success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{auth: tt.auth, log: zap.NewNop()}

			req := httptest.NewRequest("GET", "/api/calendar", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			s.Require(testHandler)(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}

			body := w.Body.String()
			if body != tt.expectedBody {
				t.Errorf("Expected body %q, got %q", tt.expectedBody, body)
			}

			// Check WWW-Authenticate header on 401
			if tt.expectedStatus == http.StatusUnauthorized {
				authHeader := resp.Header.Get("WWW-Authenticate")
				if authHeader == "" {
					t.Error("Expected WWW-Authenticate header on 401")
				}
			}
		})
	}
}

func TestArgon2idParameters(t *testing.T) {
	// Test that our Argon2id parameters are reasonable
	if argon2Memory < 64*1024 {
		t.Error("Argon2id memory should be at least 64MB (OWASP recommendation)")
	}

	if argon2Time < 1 {
		t.Error("Argon2id time parameter should be at least 1")
	}

	if argon2Threads < 1 {
		t.Error("Argon2id threads should be at least 1")
	}

	if argon2KeyLen < 32 {
		t.Error("Argon2id key length should be at least 32 bytes")
	}

	if saltLen < 16 {
		t.Error("Salt length should be at least 16 bytes")
	}
}
