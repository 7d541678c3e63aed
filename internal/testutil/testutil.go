// Package testutil holds fixtures shared by the package tests: an isolated
// SQLite-backed GORM database, seeders and request helpers.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"labportal/internal/auth"
	"labportal/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret    = "labportal-test-secret"
	TestPassword = "correct-horse-battery"
)

// OpenDB creates a migrated database in the test's temp dir with foreign keys
// enforced. The pool holds a single connection so SQLite never reports
// "database is locked" under concurrent tests.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "lab.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	if err := auth.EnsureRoles(context.Background(), db); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return db
}

func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func Tokens() *auth.Tokens {
	return auth.NewTokens(JWTSecret, time.Hour)
}

// SeedUser creates an active user holding roles, password TestPassword.
func SeedUser(t *testing.T, db *gorm.DB, username string, roles ...string) models.User {
	t.Helper()
	if _, err := auth.EnsureUser(context.Background(), db, username, TestPassword, roles...); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	var u models.User
	if err := db.Preload("Roles").First(&u, "username = ?", username).Error; err != nil {
		t.Fatalf("load user %s: %v", username, err)
	}
	return u
}

func ActorOf(u models.User) auth.Actor {
	return auth.Actor{ID: u.ID, Username: u.Username, Roles: u.RoleNames()}
}

// Token opens a session for u and returns its bearer token.
func Token(t *testing.T, db *gorm.DB, tokens *auth.Tokens, u models.User) string {
	t.Helper()
	issued, err := auth.StartSession(context.Background(), db, tokens, u)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return issued.Token
}

func SeedPlant(t *testing.T, db *gorm.DB, name string) models.Plant {
	t.Helper()
	p := models.Plant{Name: name}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed plant: %v", err)
	}
	return p
}

func SeedProduct(t *testing.T, db *gorm.DB, plantID, productID, name string) models.Product {
	t.Helper()
	p := models.Product{ProductID: productID, Name: name, PlantID: plantID}
	if err := db.Omit("Plant").Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedParameter stores p as given; CreatedAt is spaced out so definition
// order is stable.
func SeedParameter(t *testing.T, db *gorm.DB, p models.ProductParameter) models.ProductParameter {
	t.Helper()
	if p.Type == "" {
		p.Type = models.ParameterText
	}
	if p.CreatedAt.IsZero() {
		var n int64
		db.Model(&models.ProductParameter{}).Count(&n)
		p.CreatedAt = time.Date(2024, 1, 1, 0, 0, int(n), 0, time.UTC)
	}
	if err := db.Omit("Product").Create(&p).Error; err != nil {
		t.Fatalf("seed parameter: %v", err)
	}
	return p
}

// DoRequest executes an HTTP request with an optional JSON body and bearer
// token against h.
func DoRequest(h http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&reqBody).Encode(body)
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Decode unmarshals the recorded JSON body into v.
func Decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func Ptr[T any](v T) *T { return &v }
