package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is the state of a background run.
type Progress struct {
	RunID     string    `json:"run_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
	Done      bool      `json:"done"`
	Status    string    `json:"status,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Broadcaster pushes events to live clients.
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// ProgressEvent is the broadcast message type for progress changes.
const ProgressEvent = "run_progress"

// jobRetention bounds how long finished runs stay queryable.
const jobRetention = time.Hour

// JobTracker keeps progress for background runs.
type JobTracker struct {
	mu   sync.RWMutex
	runs map[string]*Progress
	hub  Broadcaster
	now  func() time.Time
}

// NewJobTracker creates a tracker. hub may be nil.
func NewJobTracker(hub Broadcaster) *JobTracker {
	return &JobTracker{
		runs: make(map[string]*Progress),
		hub:  hub,
		now:  time.Now,
	}
}

// Start registers a new run and returns its ID.
func (j *JobTracker) Start(total int, message string) string {
	id := uuid.NewString()
	j.mu.Lock()
	j.prune()
	p := &Progress{RunID: id, Total: total, Message: message, UpdatedAt: j.now()}
	j.runs[id] = p
	snapshot := *p
	j.mu.Unlock()

	j.publish(snapshot)
	return id
}

// Update applies fn to a run's progress and publishes the result.
func (j *JobTracker) Update(id string, fn func(p *Progress)) {
	j.mu.Lock()
	p, ok := j.runs[id]
	if !ok {
		j.mu.Unlock()
		return
	}
	fn(p)
	p.UpdatedAt = j.now()
	snapshot := *p
	j.mu.Unlock()

	j.publish(snapshot)
}

// Get returns a copy of a run's progress.
func (j *JobTracker) Get(id string) (Progress, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	p, ok := j.runs[id]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// prune drops finished runs past retention. Callers hold the lock.
func (j *JobTracker) prune() {
	cutoff := j.now().Add(-jobRetention)
	for id, p := range j.runs {
		if p.Done && p.UpdatedAt.Before(cutoff) {
			delete(j.runs, id)
		}
	}
}

func (j *JobTracker) publish(p Progress) {
	if j.hub != nil {
		j.hub.Broadcast(ProgressEvent, p)
	}
}
