/*
Copyright 2023 - 2025 Dima Krasner

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cfg defines the federation engine's configuration file format
// and defaults.
package cfg

import (
	"math"
	"time"
)

// Config represents a configuration file.
type Config struct {
	DatabaseOptions string

	MaxRequestBodySize int64
	MaxRequestAge      time.Duration

	MaxResponseBodySize int64

	DeliveryBatchSize     int
	DeliveryRetryInterval time.Duration
	MaxDeliveryAttempts   int
	DeliveryTimeout       time.Duration
	DeliveryWorkers       int
	DeliveryWorkerBuffer  int
	MaxDeliveryQueueSize  int

	OutboxPollingInterval time.Duration

	MaxActivitiesQueueSize    int
	ActivitiesBatchSize       int
	ActivitiesPollingInterval time.Duration
	ActivitiesBatchDelay      time.Duration
	ActivityProcessingTimeout time.Duration
	MaxForwardingDepth        int

	MaxRecipients int
	MinActorAge   time.Duration

	ResolverCacheTTL        time.Duration
	ResolverRetryInterval   time.Duration
	ResolverMaxIdleConns    int
	ResolverIdleConnTimeout time.Duration
	ResolverRequestTimeout  time.Duration
	MaxInstanceRecoveryTime time.Duration
	MaxResolverRequests     int

	DeliveryRecordTTL  time.Duration
	RevokedActivityTTL time.Duration
	TombstoneTTL       time.Duration
	ActorTTL           time.Duration
	UnprocessableTTL   time.Duration
	GarbageCollectInterval time.Duration
}

// FillDefaults replaces missing or invalid settings with defaults.
func (c *Config) FillDefaults() {
	if c.DatabaseOptions == "" {
		c.DatabaseOptions = "_journal_mode=WAL&_synchronous=1&_busy_timeout=5000"
	}

	if c.MaxRequestBodySize <= 0 {
		c.MaxRequestBodySize = 1024 * 1024
	}

	if c.MaxRequestAge <= 0 {
		c.MaxRequestAge = time.Minute * 5
	}

	if c.MaxResponseBodySize <= 0 {
		c.MaxResponseBodySize = 1024 * 1024
	}

	if c.DeliveryBatchSize <= 0 {
		c.DeliveryBatchSize = 16
	}

	if c.DeliveryRetryInterval <= 0 {
		c.DeliveryRetryInterval = time.Hour / 2
	}

	if c.MaxDeliveryAttempts <= 0 {
		c.MaxDeliveryAttempts = 5
	}

	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = time.Minute * 5
	}

	if c.DeliveryWorkers <= 0 || c.DeliveryWorkers > math.MaxInt {
		c.DeliveryWorkers = 4
	}

	if c.DeliveryWorkerBuffer <= 0 {
		c.DeliveryWorkerBuffer = 16
	}

	if c.MaxDeliveryQueueSize <= 0 {
		c.MaxDeliveryQueueSize = 128
	}

	if c.OutboxPollingInterval <= 0 {
		c.OutboxPollingInterval = time.Second * 5
	}

	if c.MaxActivitiesQueueSize <= 0 {
		c.MaxActivitiesQueueSize = 10000
	}

	if c.ActivitiesBatchSize <= 0 {
		c.ActivitiesBatchSize = 64
	}

	if c.ActivitiesPollingInterval <= 0 {
		c.ActivitiesPollingInterval = time.Second * 5
	}

	if c.ActivitiesBatchDelay <= 0 {
		c.ActivitiesBatchDelay = time.Millisecond * 100
	}

	if c.ActivityProcessingTimeout <= 0 {
		c.ActivityProcessingTimeout = time.Second * 15
	}

	if c.MaxForwardingDepth <= 0 {
		c.MaxForwardingDepth = 5
	}

	if c.MaxRecipients <= 0 {
		c.MaxRecipients = 1000
	}

	if c.MinActorAge <= 0 {
		c.MinActorAge = time.Hour * 24
	}

	if c.ResolverCacheTTL <= 0 {
		c.ResolverCacheTTL = time.Hour * 24 * 7
	}

	if c.ResolverRetryInterval <= 0 {
		c.ResolverRetryInterval = time.Hour * 6
	}

	if c.ResolverMaxIdleConns <= 0 {
		c.ResolverMaxIdleConns = 128
	}

	if c.ResolverIdleConnTimeout <= 0 {
		c.ResolverIdleConnTimeout = time.Minute
	}

	if c.ResolverRequestTimeout <= 0 {
		c.ResolverRequestTimeout = time.Second * 30
	}

	if c.MaxInstanceRecoveryTime <= 0 {
		c.MaxInstanceRecoveryTime = time.Hour * 24 * 30
	}

	if c.MaxResolverRequests <= 0 {
		c.MaxResolverRequests = 16
	}

	if c.DeliveryRecordTTL <= 0 {
		c.DeliveryRecordTTL = time.Hour * 24 * 7
	}

	if c.RevokedActivityTTL <= 0 {
		c.RevokedActivityTTL = time.Hour * 24 * 30
	}

	if c.TombstoneTTL <= 0 {
		c.TombstoneTTL = time.Hour * 24 * 30
	}

	if c.ActorTTL <= 0 {
		c.ActorTTL = time.Hour * 24 * 90
	}

	if c.UnprocessableTTL <= 0 {
		c.UnprocessableTTL = time.Hour * 24 * 14
	}

	if c.GarbageCollectInterval <= 0 {
		c.GarbageCollectInterval = time.Hour
	}
}
