package intent

import (
	"fmt"
	"strings"

	"github.com/sells-group/esg-research/internal/model"
)

const systemPrompt = "You are an intent classification expert for a sustainability chatbot."

// classificationPrompt is filled with the known intents, the analyzed
// companies and the user's message.
const classificationPrompt = `You are an intent classifier for a sustainability analysis chatbot.
Analyze the user's message and return a JSON object with this structure:

{
  "intent": "one of: %s",
  "companies": ["company names mentioned"],
  "question": "the question if intent is rag_question, otherwise null",
  "needs_analysis": ["mentioned companies that have not been analyzed yet"]
}

Already analyzed companies in database: %s

INTENT DEFINITIONS:
- "analyze": analyze a new company's sustainability
- "compare": compare two or more companies
- "rag_question": a specific question about a company, answered from scraped sources
- "show_score": the overall score
- "show_details": the detailed analysis
- "show_environmental", "show_social", "show_governance": one category's metrics
- "show_strengths_weaknesses": strengths and weaknesses
- "list_companies": list all analyzed companies
- "delete": delete specific companies from the database
- "clear": delete everything and start over
- "download": export a report for one or more companies

NEEDS_ANALYSIS:
Include mentioned companies that are NOT in the analyzed list. For delete,
clear and list_companies it is always empty.

EXAMPLES:
User: "Tesla"
{"intent": "analyze", "companies": ["Tesla"], "question": null, "needs_analysis": ["Tesla"]}

User: "Compare Tesla and Apple" (Tesla already analyzed)
{"intent": "compare", "companies": ["Tesla", "Apple"], "question": null, "needs_analysis": ["Apple"]}

User: "How does Tesla handle carbon emissions?"
{"intent": "rag_question", "companies": ["Tesla"], "question": "How does Tesla handle carbon emissions?", "needs_analysis": []}

User: "Delete Tesla"
{"intent": "delete", "companies": ["Tesla"], "question": null, "needs_analysis": []}

USER MESSAGE TO CLASSIFY:
%s`

// Prompt renders the classification prompt for message.
func Prompt(message string, analyzed []string) string {
	kinds := make([]string, len(model.IntentKinds))
	for i, k := range model.IntentKinds {
		kinds[i] = string(k)
	}
	known := "None"
	if len(analyzed) > 0 {
		known = strings.Join(analyzed, ", ")
	}
	return fmt.Sprintf(classificationPrompt, strings.Join(kinds, ", "), known, message)
}
