package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// EventPoolStarted is emitted when a pool spawns its workers
	EventPoolStarted EventType = "pool_started"
	// EventPoolStopped is emitted when a pool has drained and joined its workers
	EventPoolStopped EventType = "pool_stopped"
	// EventTaskFailed is emitted when a task returns an error or panics
	EventTaskFailed EventType = "task_failed"
	// EventChaosAttack is emitted when a chaos attack is executed
	EventChaosAttack EventType = "chaos_attack"
	// EventChaosResume is emitted when saturated workers are released by chaos
	EventChaosResume EventType = "chaos_resume"
	// EventRecoveryStart is emitted when recovery attempts to restore progress
	EventRecoveryStart EventType = "recovery_start"
	// EventRecoverySuccess is emitted when recovery restored progress
	EventRecoverySuccess EventType = "recovery_success"
	// EventRecoveryFailed is emitted when recovery could not restore progress
	EventRecoveryFailed EventType = "recovery_failed"
)

// AttackType represents the type of chaos attack
type AttackType string

const (
	AttackTypeSaturate AttackType = "saturate"
	AttackTypeRestart  AttackType = "restart"
	AttackTypeDelay    AttackType = "delay"
)

// RecoveryAction represents what the recovery manager did
type RecoveryAction string

const (
	RecoveryActionRestart RecoveryAction = "restart"
	RecoveryActionHelp    RecoveryAction = "help"
)

// Event represents a pool, chaos or recovery event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	PoolID    string    `json:"pool_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Workers       int            `json:"workers,omitempty"`
	Executed      uint64         `json:"executed,omitempty"`
	Panicked      bool           `json:"panicked,omitempty"`
	AttackType    AttackType     `json:"attack_type,omitempty"`
	DelayDuration string         `json:"delay_duration,omitempty"`
	Action        RecoveryAction `json:"action,omitempty"`
	Attempt       int            `json:"attempt,omitempty"`
	Helped        uint64         `json:"helped,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func newEvent(t EventType, poolID string, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data:      data,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewPoolStartedEvent creates a new pool started event
func NewPoolStartedEvent(poolID string, workers int) Event {
	return newEvent(EventPoolStarted, poolID, EventData{Workers: workers})
}

// NewPoolStoppedEvent creates a new pool stopped event
func NewPoolStoppedEvent(poolID string, executed uint64) Event {
	return newEvent(EventPoolStopped, poolID, EventData{Executed: executed})
}

// NewTaskFailedEvent creates a new task failed event
func NewTaskFailedEvent(poolID string, err error, panicked bool) Event {
	return newEvent(EventTaskFailed, poolID, EventData{
		Panicked: panicked,
		Error:    errString(err),
	})
}

// NewChaosAttackEvent creates a new chaos attack event
func NewChaosAttackEvent(poolID string, attackType AttackType) Event {
	return newEvent(EventChaosAttack, poolID, EventData{AttackType: attackType})
}

// NewChaosAttackEventWithDelay creates a chaos attack event for delay injection
func NewChaosAttackEventWithDelay(poolID string, delay time.Duration) Event {
	return newEvent(EventChaosAttack, poolID, EventData{
		AttackType:    AttackTypeDelay,
		DelayDuration: delay.String(),
	})
}

// NewChaosResumeEvent creates a chaos resume event
func NewChaosResumeEvent(poolID string, workers int) Event {
	return newEvent(EventChaosResume, poolID, EventData{Workers: workers})
}

// NewRecoveryStartEvent creates a recovery start event
func NewRecoveryStartEvent(poolID string, action RecoveryAction, attempt int) Event {
	return newEvent(EventRecoveryStart, poolID, EventData{
		Action:  action,
		Attempt: attempt,
	})
}

// NewRecoverySuccessEvent creates a recovery success event
func NewRecoverySuccessEvent(poolID string, action RecoveryAction, helped uint64) Event {
	return newEvent(EventRecoverySuccess, poolID, EventData{
		Action: action,
		Helped: helped,
	})
}

// NewRecoveryFailedEvent creates a recovery failed event
func NewRecoveryFailedEvent(poolID string, action RecoveryAction, err error) Event {
	return newEvent(EventRecoveryFailed, poolID, EventData{
		Action: action,
		Error:  errString(err),
	})
}
