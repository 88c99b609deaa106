// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import "github.com/AleutianAI/AleutianReview/services/review/classifier"

// ReconciledCleanMessage replaces the ML text when every signal agrees the
// code is clean.
const ReconciledCleanMessage = "The code is clean according to both the linter and security analysis, with low risk flagged by the machine learning model."

// signals is what the reconciler needs from the four checks.
type signals struct {
	syntaxError bool

	lintOK     bool
	linterTips int

	securityOK    bool
	securityClean bool

	mlOK    bool
	mlScore float64
	mlLevel classifier.Level
	mlText  string
}

// reconcile combines the check signals into the final ML text and verdict.
//
// Description:
//
//	The ML text is replaced with ReconciledCleanMessage only when the score
//	is strictly below the low threshold, lint ran with zero linter-category
//	tips, and security ran conclusively with zero findings. Best-practice
//	tips never block the clean statement.
//
//	Verdict precedence: syntax_error, unknown (no ML score), critical,
//	potential_issues, then clean or review.
func reconcile(s signals) (string, Verdict) {
	text := s.mlText
	agreedClean := s.mlOK &&
		s.mlScore < classifier.LowThreshold &&
		s.lintOK && s.linterTips == 0 &&
		s.securityOK && s.securityClean
	if agreedClean {
		text = ReconciledCleanMessage
	}

	switch {
	case s.syntaxError:
		return text, VerdictSyntaxError
	case !s.mlOK:
		return text, VerdictUnknown
	case s.mlLevel == classifier.LevelCritical:
		return text, VerdictCritical
	case s.mlLevel == classifier.LevelPotential:
		return text, VerdictPotentialIssues
	case agreedClean:
		return text, VerdictClean
	default:
		return text, VerdictReview
	}
}
