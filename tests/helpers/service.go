package helpers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rovercam/rovercam/internal"
	"github.com/rovercam/rovercam/internal/api"
	"github.com/rovercam/rovercam/internal/control"
	"github.com/rovercam/rovercam/internal/database"
	"github.com/rovercam/rovercam/internal/sweep"
)

var (
	mutex   = sync.Mutex{}
	portInc = 42100
)

func getNextPort() int {
	mutex.Lock()
	defer mutex.Unlock()

	portInc++
	return portInc
}

// TestService holds information about a provisioned RoverCam service
// which a test can request resources from (typically test clients for
// making requests, which handle port mappings).
type TestService struct {
	Port         int
	DatabaseName string

	cleanup func(t *testing.T)
}

func (service *TestService) GetServerBasePath() string {
	return fmt.Sprintf("http://localhost:%d/api/", service.Port)
}

func (service *TestService) String() string {
	return fmt.Sprintf("TestService{port=%d database=%s}", service.Port, service.DatabaseName)
}

// RequireService provisions a fresh database (templated from the
// migrated master) and spawns an in-process RoverCam instance bound to
// it. The service is torn down automatically when the test finishes.
func RequireService(t *testing.T, databaseName string) *TestService {
	databases.provisionDB(t, databaseName)

	service := spawnRoverCam(t, databaseName)
	t.Cleanup(func() { service.cleanup(t) })
	return service
}

// spawnRoverCam runs a new RoverCam service instance inside the test
// process, pointed at the database given. This function will BLOCK
// until the instance is ready to receive HTTP requests (or, if the
// timeout is exceeded, in which case error is reported via the
// testing.T).
func spawnRoverCam(t *testing.T, databaseName string) *TestService {
	port := getNextPort()
	t.Logf("Spawning RoverCam service on port %d against database %s\n", port, databaseName)

	config := internal.RoverCamConfig{
		Rest: api.RestConfig{
			HostAddr:    fmt.Sprintf("0.0.0.0:%d", port),
			EnableCORS:  true,
			MaxUploadMB: 200,
		},
		Database: database.DatabaseConfig{
			User:     User,
			Password: Password,
			Name:     databaseName,
			Host:     Host,
			Port:     Port,
		},
		Storage: internal.StorageConfig{BlobDirPath: t.TempDir()},
		// The public broker must never be reached from tests; command
		// publishing becomes a no-op.
		Mqtt:  control.MqttConfig{Enabled: false},
		Sweep: sweep.Config{IntervalMinutes: 30, MinAgeMinutes: 60},
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- internal.New(config).Run(runCtx)
	}()

	cleanup := func(t *testing.T) {
		t.Logf("Stopping RoverCam service (port %d)...", port)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Logf("WARNING: RoverCam service (port %d) reported error on shutdown: %s", port, err)
			}
		case <-time.After(10 * time.Second):
			t.Logf("WARNING: RoverCam service (port %d) did not shut down before timeout", port)
		}
	}

	service := &TestService{Port: port, DatabaseName: databaseName, cleanup: cleanup}
	if err := service.waitForHealthy(t, 100*time.Millisecond, 10*time.Second); err != nil {
		defer cleanup(t)
		t.Fatalf("failed to provision RoverCam instance: service did not become healthy before timeout (last error %+v)", err)
		return nil
	}

	t.Logf("RoverCam service (port %d) became healthy", port)
	return service
}

// waitForHealthy will ping the service (every pollFrequency) until the timeout is reached.
// If no successful request has been made when the timeout is reached, then the most
// recent error is returned to the caller, indicating that the service failed to become
// healthy (i.e. the service is not accepting HTTP connections).
func (service *TestService) waitForHealthy(t *testing.T, pollFrequency time.Duration, timeout time.Duration) error {
	client := service.NewClient(t)
	attempts := timeout.Milliseconds() / pollFrequency.Milliseconds()

	var lastErr error
	for attempt := int64(0); attempt < attempts; attempt++ {
		resp, err := client.do(http.MethodGet, "videos", nil, nil)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("health probe returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		time.Sleep(pollFrequency)
	}

	return lastErr
}
