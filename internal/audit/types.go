package audit

import "time"

// #region action-entry

// ActionEntry is one appended enforcement action outcome. Rows are immutable
// once written; post-incident reconstruction reads them without the live
// process.
type ActionEntry struct {
	ID        string
	Kind      string // "throttle" | "degrade_feature" | "kill" | "alert"
	Target    string
	Outcome   string // "applied" | "suppressed_rate_limited" | "failed"
	Reason    string
	CreatedAt time.Time
}

// #endregion action-entry

// #region transition-entry

// TransitionEntry records one guardian state transition and the severity that
// triggered it.
type TransitionEntry struct {
	ID        string
	FromState string
	ToState   string
	Severity  string
	Reason    string
	CreatedAt time.Time
}

// #endregion transition-entry

// #region promotion-entry

// PromotionEntry records one canary stage decision. ManifestHash ties the
// decision to the exact trained artifact so any promoted state is
// reproducible from this log alone.
type PromotionEntry struct {
	ID           string
	FromStage    string
	ToStage      string
	WindowID     string
	ManifestHash string
	SnapshotJSON string
	Rationale    string
	CreatedAt    time.Time
}

// #endregion promotion-entry
