// Package testhelpers provides shared infrastructure for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/database"
)

// WarehouseImage is the PostgreSQL image used as a disposable warehouse.
const WarehouseImage = "postgres:16-alpine"

const (
	testUser     = "analytics"
	testPassword = "test_password"
	testDatabase = "warehouse_test"
	testSchema   = "analytics"
)

// WarehouseDB holds a shared warehouse container with migrations applied.
type WarehouseDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
	Schema    string
}

var (
	sharedWarehouse     *WarehouseDB
	sharedWarehouseOnce sync.Once
	sharedWarehouseErr  error
)

// GetWarehouseDB returns a shared PostgreSQL container for integration
// tests. The container is created once per run, migrated, and reused.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedWarehouseOnce.Do(func() {
		sharedWarehouse, sharedWarehouseErr = setupWarehouse()
	})
	if sharedWarehouseErr != nil {
		t.Fatalf("Failed to set up warehouse container: %v", sharedWarehouseErr)
	}
	return sharedWarehouse
}

func setupWarehouse() (*WarehouseDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        WarehouseImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start warehouse container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable search_path=%s",
		host, port.Port(), testUser, testPassword, testDatabase, testSchema)

	if err := database.RunMigrations(connStr, migrationsPath(), testSchema, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to migrate warehouse: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.PoolConfig{URL: connStr, MaxConnections: 5})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	return &WarehouseDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
		Schema:    testSchema,
	}, nil
}

// migrationsPath locates the migrations directory relative to this file, so
// integration tests resolve it regardless of which package runs them.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
