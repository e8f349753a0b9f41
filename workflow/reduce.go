package workflow

// Reduce merges a node's delta into the accumulated state per spec §5:
//   - scalar fields are replaced iff the delta's value is non-zero;
//   - list fields are appended, preserving order, except ProposalOutline,
//     which a non-empty delta replaces whole;
//   - mapping fields are merged key-wise, delta wins on key collision;
//   - execution_log/errors/warnings/critic_scores_history are always
//     appended, never replaced.
//
// Reduce is commutative for the disjoint-field deltas produced by the
// challenge_extractor fan-out (discovery/value/case/competitor each touch
// different top-level fields), satisfying the parallel-branch-independence
// invariant regardless of merge order.
func Reduce(prev, delta State) (State, error) {
	next := prev

	if delta.CurrentStep != "" {
		next.CurrentStep = delta.CurrentStep
	}
	if delta.RFPSummary != "" {
		next.RFPSummary = delta.RFPSummary
	}
	if delta.ContextOverview != "" {
		next.ContextOverview = delta.ContextOverview
	}
	if delta.ProjectScope != "" {
		next.ProjectScope = delta.ProjectScope
	}
	if len(delta.BusinessObjectives) > 0 {
		next.BusinessObjectives = append(append([]string{}, next.BusinessObjectives...), delta.BusinessObjectives...)
	}
	if len(delta.Challenges) > 0 {
		next.Challenges = append(append([]Challenge{}, next.Challenges...), delta.Challenges...)
	}
	if len(delta.DiscoveryQuestions) > 0 {
		merged := make(map[string][]string, len(next.DiscoveryQuestions)+len(delta.DiscoveryQuestions))
		for k, v := range next.DiscoveryQuestions {
			merged[k] = v
		}
		for k, v := range delta.DiscoveryQuestions {
			merged[k] = v
		}
		next.DiscoveryQuestions = merged
	}
	if len(delta.ValueProps) > 0 {
		next.ValueProps = append(append([]string{}, next.ValueProps...), delta.ValueProps...)
	}
	if len(delta.MatchingCaseStudies) > 0 {
		next.MatchingCaseStudies = append(append([]CaseStudyMatch{}, next.MatchingCaseStudies...), delta.MatchingCaseStudies...)
	}
	if len(delta.Competitors) > 0 {
		next.Competitors = append(append([]string{}, next.Competitors...), delta.Competitors...)
	}
	if len(delta.BattleCards) > 0 {
		next.BattleCards = append(append([]BattleCard{}, next.BattleCards...), delta.BattleCards...)
	}
	if len(delta.ProposalOutline) > 0 {
		next.ProposalOutline = delta.ProposalOutline
	}
	if delta.OutlineApproved != nil {
		next.OutlineApproved = delta.OutlineApproved
		next.ApprovedAt = delta.ApprovedAt
	}
	if len(delta.ProposalDraft) > 0 {
		merged := make(map[string]string, len(next.ProposalDraft)+len(delta.ProposalDraft))
		for k, v := range next.ProposalDraft {
			merged[k] = v
		}
		for k, v := range delta.ProposalDraft {
			merged[k] = v
		}
		next.ProposalDraft = merged
	}
	if delta.CriticScore > 0 {
		next.CriticScore = delta.CriticScore
		next.RefinementFeedback = delta.RefinementFeedback
	}
	if delta.RefinementIterations > 0 {
		next.RefinementIterations = delta.RefinementIterations
	}

	next.CriticScoresHistory = append(append([]CriticReport{}, next.CriticScoresHistory...), delta.CriticScoresHistory...)
	next.ExecutionLog = append(append([]LogEntry{}, next.ExecutionLog...), delta.ExecutionLog...)
	next.Errors = append(append([]string{}, next.Errors...), delta.Errors...)
	next.Warnings = append(append([]string{}, next.Warnings...), delta.Warnings...)

	return next, nil
}
