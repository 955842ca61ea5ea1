package cron

import (
	"context"
	"errors"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailsync/config"
	cron_config "github.com/customeros/mailsync/internal/cron/config"
	"github.com/customeros/mailsync/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleEmailSync(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		LogLevel: "error",
		DevMode:  true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{PodName: "test-pod"},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, &cron_config.Config{}, log, k8s, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cronCfg := &cron_config.Config{
		CronScheduleHeartbeat: "0 * * * * *",
		CronScheduleEmailSync: "*/30 * * * * *",
	}
	cm := NewCronManager(testConfig(), cronCfg, getLogger(), nil, &mockScheduler{})

	c := cronv3.New(cronv3.WithSeconds())
	require.NoError(t, cm.registerJobs(c))

	assert.Len(t, cm.jobIDs, 2)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "email_sync")
	assert.Len(t, c.Entries(), 2)
}

func TestCronManager_RegisterJobs_SkipsEmptySchedules(t *testing.T) {
	cm := NewCronManager(testConfig(), &cron_config.Config{CronScheduleEmailSync: "0 * * * * *"}, getLogger(), nil, &mockScheduler{})

	require.NoError(t, cm.registerJobs(cronv3.New(cronv3.WithSeconds())))

	assert.Len(t, cm.jobIDs, 1)
	assert.Contains(t, cm.jobIDs, "email_sync")
}

func TestCronManager_RegisterJobs_InvalidSchedule(t *testing.T) {
	cm := NewCronManager(testConfig(), &cron_config.Config{CronScheduleEmailSync: "not a schedule"}, getLogger(), nil, &mockScheduler{})

	assert.Error(t, cm.registerJobs(cronv3.New(cronv3.WithSeconds())))
}

func TestCronManager_ScheduleEmailSync(t *testing.T) {
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleEmailSync", mock.Anything).Return(3, nil).Once()
	scheduler.On("ScheduleEmailSync", mock.Anything).Return(0, errors.New("db down")).Once()
	cm := NewCronManager(testConfig(), &cron_config.Config{}, getLogger(), nil, scheduler)

	cm.scheduleEmailSync()
	cm.scheduleEmailSync()

	scheduler.AssertNumberOfCalls(t, "ScheduleEmailSync", 2)
}

func TestCronManager_StartLocalAndStop(t *testing.T) {
	cm := NewCronManager(testConfig(), &cron_config.Config{CronScheduleHeartbeat: "0 0 * * * *"}, getLogger(), nil, &mockScheduler{})

	require.NoError(t, cm.Start("test-pod", "default"))
	require.NotNil(t, cm.cron)
	assert.Len(t, cm.cron.Entries(), 1)

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}
