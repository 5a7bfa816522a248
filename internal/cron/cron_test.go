package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"k8s.io/client-go/kubernetes"

	"github.com/sendframe/sendframe/config"
	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
}

type recordingBounceService struct {
	mu     sync.Mutex
	sweeps int
}

func (s *recordingBounceService) CheckBounces(ctx context.Context, senderID string) (*dto.BounceResult, error) {
	return &dto.BounceResult{}, nil
}

func (s *recordingBounceService) SweepAllSenders(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return nil
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig(schedule string) *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		Logger: &logger.Config{
			LogLevel: "info",
		},
		BounceSweepConfig: &config.BounceSweepConfig{
			Schedule:      schedule,
			LookbackHours: 24,
		},
	}
}

func TestNewCronManager(t *testing.T) {
	// Arrange
	cfg := testConfig("0 6 * * *")
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	// Act
	cm := NewCronManager(cfg, log, k8s, &recordingBounceService{})

	// Assert
	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartCron(t *testing.T) {
	// Arrange
	cm := NewCronManager(testConfig("0 6 * * *"), getLogger(), nil, &recordingBounceService{})

	// Act
	cm.StartCron()
	defer cm.Stop()

	// Assert
	assert.NotNil(t, cm.cron)
	assert.Equal(t, 1, len(cm.jobIDs))
	assert.Contains(t, cm.jobIDs, "bounce_sweep")
}

func TestCronManager_StartCron_EmptyScheduleRegistersNothing(t *testing.T) {
	// Arrange
	cm := NewCronManager(testConfig(""), getLogger(), nil, &recordingBounceService{})

	// Act
	cm.StartCron()
	defer cm.Stop()

	// Assert
	assert.Equal(t, 0, len(cm.jobIDs))
}

func TestCronManager_SweepRuns(t *testing.T) {
	// Arrange
	bounces := &recordingBounceService{}
	cm := NewCronManager(testConfig("@every 1h"), getLogger(), nil, bounces)

	// Act
	cm.sweepBounces()

	// Assert
	bounces.mu.Lock()
	defer bounces.mu.Unlock()
	assert.Equal(t, 1, bounces.sweeps)
}

func TestCronManager_Stop(t *testing.T) {
	// Arrange
	cm := NewCronManager(testConfig("0 6 * * *"), getLogger(), &mockKubernetesInterface{}, &recordingBounceService{})

	// Create a mock cron for testing
	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	// Act
	done := make(chan struct{})
	go func() {
		cm.Stop()
		close(done)
	}()

	// Assert
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
