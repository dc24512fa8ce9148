package core

import (
	"fmt"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

// Heart rate classification bands in beats per minute. Bounds are
// inclusive on both ends of each band.
const (
	criticalLowMax = 39
	warningLowMax  = 49
	normalMax      = 90
	warningHighMax = 110
)

// Classify maps a heart rate to its category. The bands partition the
// whole valid range, so every in-range rate gets exactly one category.
func Classify(heartRate int) models.Category {
	switch {
	case heartRate <= criticalLowMax:
		return models.CategoryCriticalLow
	case heartRate <= warningLowMax:
		return models.CategoryWarningLow
	case heartRate <= normalMax:
		return models.CategoryNormal
	case heartRate <= warningHighMax:
		return models.CategoryWarningHigh
	default:
		return models.CategoryCriticalHigh
	}
}

// AlertMessage renders the human readable alert line for an abnormal
// reading, naming the band that was breached.
func AlertMessage(category models.Category, heartRate int) string {
	switch category {
	case models.CategoryCriticalLow:
		return fmt.Sprintf("Critical low heart rate: %d bpm (< %d)", heartRate, criticalLowMax+1)
	case models.CategoryWarningLow:
		return fmt.Sprintf("Low heart rate: %d bpm (%d-%d)", heartRate, criticalLowMax+1, warningLowMax)
	case models.CategoryWarningHigh:
		return fmt.Sprintf("Elevated heart rate: %d bpm (%d-%d)", heartRate, normalMax+1, warningHighMax)
	case models.CategoryCriticalHigh:
		return fmt.Sprintf("Critical high heart rate: %d bpm (> %d)", heartRate, warningHighMax)
	default:
		return fmt.Sprintf("Heart rate within normal range: %d bpm", heartRate)
	}
}
