// Package model defines the core data types for the fundamentals analyzer.
// Struct tags (the `json:"..."` and `db:"..."` annotations) tell serialization
// libraries how to map fields.
package model

import "time"

// SectionKey identifies one of the fixed fundamental-analysis topics.
// Go doesn't have enums; typed string constants fill the role.
type SectionKey string

const (
	SectionQuickStats       SectionKey = "quick_stats"
	SectionBusinessOverview SectionKey = "business_overview"
	SectionBusinessModelMap SectionKey = "business_model_map"
	SectionTheMachine       SectionKey = "the_machine"
	SectionEcosystem        SectionKey = "ecosystem"
	SectionIndustryDeepDive SectionKey = "industry_deep_dive"
	SectionRiskAnalysis     SectionKey = "risk_analysis"
	SectionSevenPowers      SectionKey = "seven_powers"
	SectionBullBearCases    SectionKey = "bull_bear_cases"
)

// AllSections is the display order of every section.
var AllSections = []SectionKey{
	SectionQuickStats,
	SectionBusinessOverview,
	SectionBusinessModelMap,
	SectionTheMachine,
	SectionEcosystem,
	SectionIndustryDeepDive,
	SectionRiskAnalysis,
	SectionSevenPowers,
	SectionBullBearCases,
}

// ValidSection checks if a string names one of the fixed sections.
func ValidSection(s string) bool {
	for _, k := range AllSections {
		if string(k) == s {
			return true
		}
	}
	return false
}

// SessionInfo describes one uploaded document. It is also the row shape of
// the sessions table in the call ledger.
type SessionInfo struct {
	ID          string    `db:"id" json:"id"`
	Filename    string    `db:"filename" json:"filename"`
	Pages       int       `db:"pages" json:"pages"`
	Characters  int       `db:"characters" json:"characters"`
	CompanyName string    `db:"company_name" json:"company_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LLMCall tracks each call to an LLM provider for cost monitoring.
type LLMCall struct {
	ID           int64     `db:"id" json:"id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	Section      string    `db:"section" json:"section"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Success      bool      `db:"success" json:"success"`
	ErrorKind    *string   `db:"error_kind" json:"error_kind,omitempty"`
	PromptChars  int       `db:"prompt_chars" json:"prompt_chars"`
	ContextChars int       `db:"context_chars" json:"context_chars"`
	DurationMs   *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
