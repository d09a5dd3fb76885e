package models

import (
	"time"
)

// SchedulerConfig holds configuration for the scheduler service
type SchedulerConfig struct {
	UpdateInterval         time.Duration `json:"update_interval"`
	InterSubscriptionDelay time.Duration `json:"inter_subscription_delay"`
	Mode                   SyncMode      `json:"mode"`
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		UpdateInterval:         30 * time.Minute,
		InterSubscriptionDelay: 2 * time.Second,
		Mode:                   SyncIncremental,
	}
}
