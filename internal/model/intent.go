package model

// IntentKind names a chat intent as exchanged with the classifier.
type IntentKind string

// Intent kinds understood by the chat service.
const (
	IntentAnalyze                 IntentKind = "analyze"
	IntentCompare                 IntentKind = "compare"
	IntentQuestion                IntentKind = "rag_question"
	IntentShowScore               IntentKind = "show_score"
	IntentShowDetails             IntentKind = "show_details"
	IntentShowEnvironmental       IntentKind = "show_environmental"
	IntentShowSocial              IntentKind = "show_social"
	IntentShowGovernance          IntentKind = "show_governance"
	IntentShowStrengthsWeaknesses IntentKind = "show_strengths_weaknesses"
	IntentListCompanies           IntentKind = "list_companies"
	IntentDelete                  IntentKind = "delete"
	IntentClear                   IntentKind = "clear"
	IntentDownload                IntentKind = "download"
)

// IntentKinds lists every supported intent kind.
var IntentKinds = []IntentKind{
	IntentAnalyze, IntentCompare, IntentQuestion, IntentShowScore,
	IntentShowDetails, IntentShowEnvironmental, IntentShowSocial,
	IntentShowGovernance, IntentShowStrengthsWeaknesses, IntentListCompanies,
	IntentDelete, IntentClear, IntentDownload,
}

// Intent is a classified chat message. The set of implementations is closed:
// only the variant types in this file satisfy it.
type Intent interface {
	Kind() IntentKind
	Targets() Mentions
	sealed()
}

// Mentions holds the companies an intent refers to.
type Mentions struct {
	Companies     []string `json:"companies"`
	NeedsAnalysis []string `json:"needs_analysis"`
}

// Targets returns m itself so variants can embed it.
func (m Mentions) Targets() Mentions { return m }

// First returns the first mentioned company, or "".
func (m Mentions) First() string {
	if len(m.Companies) == 0 {
		return ""
	}
	return m.Companies[0]
}

type (
	// AnalyzeIntent asks for a new analysis.
	AnalyzeIntent struct{ Mentions }
	// CompareIntent compares two or more companies.
	CompareIntent struct{ Mentions }
	// QuestionIntent asks a free-form question answered from scraped sources.
	QuestionIntent struct {
		Mentions
		Question string
	}
	// ShowScoreIntent shows the overall score.
	ShowScoreIntent struct{ Mentions }
	// ShowDetailsIntent shows the detailed analysis.
	ShowDetailsIntent struct{ Mentions }
	// ShowCategoryIntent shows one category's metrics.
	ShowCategoryIntent struct {
		Mentions
		Category Category
	}
	// ShowStrengthsWeaknessesIntent shows the top and bottom metrics.
	ShowStrengthsWeaknessesIntent struct{ Mentions }
	// ListCompaniesIntent lists analyzed companies.
	ListCompaniesIntent struct{ Mentions }
	// DeleteIntent deletes specific companies.
	DeleteIntent struct{ Mentions }
	// ClearIntent deletes everything and resets the conversation.
	ClearIntent struct{ Mentions }
	// DownloadIntent exports a report.
	DownloadIntent struct{ Mentions }
)

func (AnalyzeIntent) Kind() IntentKind     { return IntentAnalyze }
func (CompareIntent) Kind() IntentKind     { return IntentCompare }
func (QuestionIntent) Kind() IntentKind    { return IntentQuestion }
func (ShowScoreIntent) Kind() IntentKind   { return IntentShowScore }
func (ShowDetailsIntent) Kind() IntentKind { return IntentShowDetails }
func (i ShowCategoryIntent) Kind() IntentKind {
	switch i.Category {
	case Social:
		return IntentShowSocial
	case Governance:
		return IntentShowGovernance
	default:
		return IntentShowEnvironmental
	}
}
func (ShowStrengthsWeaknessesIntent) Kind() IntentKind { return IntentShowStrengthsWeaknesses }
func (ListCompaniesIntent) Kind() IntentKind           { return IntentListCompanies }
func (DeleteIntent) Kind() IntentKind                  { return IntentDelete }
func (ClearIntent) Kind() IntentKind                   { return IntentClear }
func (DownloadIntent) Kind() IntentKind                { return IntentDownload }

func (AnalyzeIntent) sealed()                 {}
func (CompareIntent) sealed()                 {}
func (QuestionIntent) sealed()                {}
func (ShowScoreIntent) sealed()               {}
func (ShowDetailsIntent) sealed()             {}
func (ShowCategoryIntent) sealed()            {}
func (ShowStrengthsWeaknessesIntent) sealed() {}
func (ListCompaniesIntent) sealed()           {}
func (DeleteIntent) sealed()                  {}
func (ClearIntent) sealed()                   {}
func (DownloadIntent) sealed()                {}

// NewIntent builds the variant for kind. Unknown kinds return false.
func NewIntent(kind IntentKind, m Mentions, question string) (Intent, bool) {
	switch kind {
	case IntentAnalyze:
		return AnalyzeIntent{m}, true
	case IntentCompare:
		return CompareIntent{m}, true
	case IntentQuestion:
		return QuestionIntent{Mentions: m, Question: question}, true
	case IntentShowScore:
		return ShowScoreIntent{m}, true
	case IntentShowDetails:
		return ShowDetailsIntent{m}, true
	case IntentShowEnvironmental:
		return ShowCategoryIntent{Mentions: m, Category: Environmental}, true
	case IntentShowSocial:
		return ShowCategoryIntent{Mentions: m, Category: Social}, true
	case IntentShowGovernance:
		return ShowCategoryIntent{Mentions: m, Category: Governance}, true
	case IntentShowStrengthsWeaknesses:
		return ShowStrengthsWeaknessesIntent{m}, true
	case IntentListCompanies:
		return ListCompaniesIntent{m}, true
	case IntentDelete:
		return DeleteIntent{m}, true
	case IntentClear:
		return ClearIntent{m}, true
	case IntentDownload:
		return DownloadIntent{m}, true
	}
	return nil, false
}
