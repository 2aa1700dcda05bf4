// Package classify scores page HTML and URLs against a fixed taxonomy of
// page types using weighted heuristics, with an LLM fallback for
// low-confidence cases.
package classify

// PageType is one of the fixed page categories the pipeline understands.
type PageType string

// The full page-type taxonomy. Classification results never leave this set.
const (
	TypeListing            PageType = "listing"
	TypeDetail             PageType = "detail"
	TypeCategoryListing    PageType = "category_listing"
	TypeCompanyCareers     PageType = "company_careers"
	TypePagination         PageType = "pagination"
	TypeSearchLanding      PageType = "search_landing"
	TypeLoginWall          PageType = "login_wall"
	TypeCaptchaChallenge   PageType = "captcha_challenge"
	TypeError              PageType = "error"
	TypeExpired            PageType = "expired"
	TypeExternalApply      PageType = "external_apply"
	TypeIrrelevant         PageType = "irrelevant"
	TypeDuplicateCanonical PageType = "duplicate_canonical"
)

// Method records how a classification was produced.
type Method string

const (
	// MethodHeuristic means the weighted scorers decided.
	MethodHeuristic Method = "heuristic"
	// MethodLLM means the language-model fallback decided.
	MethodLLM Method = "llm"
)

// ConfidenceThreshold is the heuristic score below which the LLM fallback
// is consulted (when permitted).
const ConfidenceThreshold = 0.6

// Classification is the result of classifying one page capture.
// Signals lists the names of the heuristics that contributed, for audit.
type Classification struct {
	Type       PageType `json:"type"`
	Confidence float64  `json:"confidence"`
	Method     Method   `json:"method"`
	Signals    []string `json:"signals"`
}

// IsJobPage reports whether t is a page the extractor can work on directly.
func IsJobPage(t PageType) bool {
	return t == TypeDetail || t == TypeExternalApply
}

// NeedsHumanRecovery reports whether t requires an operator before the
// pipeline can continue.
func NeedsHumanRecovery(t PageType) bool {
	return t == TypeLoginWall || t == TypeCaptchaChallenge
}

// ValidType reports whether s is a member of the taxonomy.
func ValidType(s string) bool {
	switch PageType(s) {
	case TypeListing, TypeDetail, TypeCategoryListing, TypeCompanyCareers,
		TypePagination, TypeSearchLanding, TypeLoginWall, TypeCaptchaChallenge,
		TypeError, TypeExpired, TypeExternalApply, TypeIrrelevant, TypeDuplicateCanonical:
		return true
	}
	return false
}
