package build

import (
	"sync"
	"time"
)

// BuildResult summarises one pipeline execution.
type BuildResult struct {
	Duration time.Duration
	Stage    string // failing stage, empty on success
	Error    error
}

// BuildMetrics tracks build outcomes across cycles.
type BuildMetrics struct {
	mutex            sync.RWMutex
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	totalDuration    time.Duration
	lastFailedStage  string
	lastSucceeded    bool
	failuresByStage  map[string]int64
}

// MetricsSnapshot is a point-in-time copy of BuildMetrics.
type MetricsSnapshot struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastFailedStage  string
	LastSucceeded    bool
	FailuresByStage  map[string]int64
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{failuresByStage: make(map[string]int64)}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result BuildResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.totalBuilds++
	bm.totalDuration += result.Duration

	bm.lastSucceeded = result.Error == nil
	if result.Error != nil {
		bm.failedBuilds++
		if result.Stage != "" {
			bm.lastFailedStage = result.Stage
			bm.failuresByStage[result.Stage]++
		}
	} else {
		bm.successfulBuilds++
	}
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	snap := MetricsSnapshot{
		TotalBuilds:      bm.totalBuilds,
		SuccessfulBuilds: bm.successfulBuilds,
		FailedBuilds:     bm.failedBuilds,
		TotalDuration:    bm.totalDuration,
		LastFailedStage:  bm.lastFailedStage,
		LastSucceeded:    bm.lastSucceeded,
		FailuresByStage:  make(map[string]int64, len(bm.failuresByStage)),
	}
	if bm.totalBuilds > 0 {
		snap.AverageDuration = bm.totalDuration / time.Duration(bm.totalBuilds)
	}
	for stage, n := range bm.failuresByStage {
		snap.FailuresByStage[stage] = n
	}
	return snap
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.totalBuilds == 0 {
		return 0.0
	}

	return float64(bm.successfulBuilds) / float64(bm.totalBuilds) * 100.0
}
