package core

import (
	"errors"
	"fmt"
	"time"
)

// validTransitions defines allowed state transitions for alerts
var validTransitions = map[AlertStatus][]AlertStatus{
	StatusActive:        {StatusInvestigating, StatusResolved, StatusFalsePositive},
	StatusInvestigating: {StatusResolved, StatusFalsePositive},
	StatusResolved:      {}, // Final state - no transitions allowed
	StatusFalsePositive: {}, // Final state - no transitions allowed
}

// TransitionTo validates and executes an alert state transition.
// Every transition appends a timeline entry; transitions into a terminal
// state additionally record who resolved the alert and when.
func (a *Alert) TransitionTo(newStatus AlertStatus, actor string) error {
	if newStatus == "" {
		return errors.New("new status cannot be empty")
	}

	if !newStatus.IsValid() {
		return fmt.Errorf("invalid alert status: %s", newStatus)
	}

	allowedTransitions, exists := validTransitions[a.Status]
	if !exists {
		return fmt.Errorf("unknown current status: %s", a.Status)
	}

	allowed := false
	for _, status := range allowedTransitions {
		if status == newStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		return fmt.Errorf("invalid transition: %s → %s (allowed: %v)", a.Status, newStatus, allowedTransitions)
	}

	previous := a.Status
	a.Status = newStatus
	a.UpdatedAt = time.Now().UTC()
	a.AppendTimeline("status_changed", fmt.Sprintf("%s → %s", previous, newStatus), actor)

	if newStatus == StatusResolved || newStatus == StatusFalsePositive {
		now := time.Now().UTC()
		a.ResolvedAt = &now
		a.ResolvedBy = actor
	}

	a.RecomputeRiskScore()
	return nil
}

// CanTransitionTo checks if a transition is allowed without executing it
func (a *Alert) CanTransitionTo(newStatus AlertStatus) bool {
	if !newStatus.IsValid() {
		return false
	}

	allowedTransitions, exists := validTransitions[a.Status]
	if !exists {
		return false
	}

	for _, status := range allowedTransitions {
		if status == newStatus {
			return true
		}
	}

	return false
}

// GetAllowedTransitions returns all valid transitions from the current state
func (a *Alert) GetAllowedTransitions() []AlertStatus {
	allowedTransitions, exists := validTransitions[a.Status]
	if !exists {
		return []AlertStatus{}
	}

	result := make([]AlertStatus, len(allowedTransitions))
	copy(result, allowedTransitions)
	return result
}

// IsFinalState checks if the alert is in a terminal state
func (a *Alert) IsFinalState() bool {
	allowedTransitions, exists := validTransitions[a.Status]
	if !exists {
		return false
	}
	return len(allowedTransitions) == 0
}
