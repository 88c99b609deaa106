// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import "fmt"

// Thresholds on the issue probability. Both comparisons are strict.
const (
	HighThreshold = 0.90
	LowThreshold  = 0.75
)

// Level is the coarse outcome of a classification.
type Level string

const (
	LevelCritical  Level = "critical"
	LevelPotential Level = "potential_issues"
	LevelClean     Level = "clean"
)

// Assessment is a score with its interpretation.
type Assessment struct {
	Score   float64 `json:"score"`
	Level   Level   `json:"level"`
	Message string  `json:"message"`
}

// Interpret maps an issue probability to an assessment.
//
// # Description
//
//   - score > 0.90: critical, "Critical issues detected with high confidence (0.95). Immediate review needed."
//   - score > 0.75: potential, "Potential issues detected with a confidence of 0.80. Review recommended."
//   - otherwise:    clean, "The code appears clean with a confidence of 0.70." (printed as 1 - score)
func Interpret(score float64) Assessment {
	switch {
	case score > HighThreshold:
		return Assessment{
			Score:   score,
			Level:   LevelCritical,
			Message: fmt.Sprintf("Critical issues detected with high confidence (%.2f). Immediate review needed.", score),
		}
	case score > LowThreshold:
		return Assessment{
			Score:   score,
			Level:   LevelPotential,
			Message: fmt.Sprintf("Potential issues detected with a confidence of %.2f. Review recommended.", score),
		}
	default:
		return Assessment{
			Score:   score,
			Level:   LevelClean,
			Message: fmt.Sprintf("The code appears clean with a confidence of %.2f.", 1-score),
		}
	}
}
