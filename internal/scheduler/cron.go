package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/anniversary-reminder/internal/queue"
)

// DefaultSweepSpec fires the daily sweep at 07:00 in the calendar zone.
const DefaultSweepSpec = "0 7 * * *"

// Publisher is the producing half of a queue.
type Publisher interface {
	Publish(topic string, payload any) error
}

// CronManager publishes sweep triggers on a cron schedule. It never runs a
// sweep itself; consumers of the topic do.
type CronManager struct {
	cron      *cron.Cron
	publisher Publisher
	topic     string
	logger    *log.Logger
}

// NewCronManager evaluates schedules in loc.
func NewCronManager(publisher Publisher, topic string, loc *time.Location, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronManager{
		cron:      cron.New(cron.WithLocation(loc)),
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// ValidateSpec reports whether spec is a standard five-field cron expression.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// SetupJobs registers the sweep trigger.
func (cm *CronManager) SetupJobs(spec string) error {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	_, err := cm.cron.AddFunc(spec, func() {
		cm.logger.Println("🕐 Publishing scheduled sweep trigger...")
		cm.TriggerNow("cron")
	})
	if err != nil {
		return fmt.Errorf("add sweep job: %w", err)
	}
	cm.logger.Printf("✅ Sweep trigger scheduled (%s, %s)", spec, cm.cron.Location())
	return nil
}

// TriggerNow publishes one trigger outside the schedule.
func (cm *CronManager) TriggerNow(source string) {
	if err := cm.publisher.Publish(cm.topic, queue.NewSweepTrigger(source)); err != nil {
		cm.logger.Printf("❌ Failed to publish sweep trigger: %v", err)
	}
}

// Entries exposes the next fire times, for logging and tests.
func (cm *CronManager) Entries() []cron.Entry {
	return cm.cron.Entries()
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for a running job to return.
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	<-cm.cron.Stop().Done()
}
