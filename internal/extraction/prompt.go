package extraction

import "github.com/google/generative-ai-go/genai"

// categoryEnum constrains the category field of the output schema. The
// values are the app's closed expense category set.
var categoryEnum = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Utilities",
	"Shopping",
	"Health",
	"Entertainment",
	"Other",
}

// systemInstruction primes the model for the extraction task.
const systemInstruction = "You are an expert receipt parser helper accounting assistant."

// extractPrompt is the fixed instruction sent with every receipt image.
const extractPrompt = "Analyze this receipt. Extract the merchant, total, date, and categorize it. " +
	"If the date is missing, estimate based on current year or leave empty."

// ollamaPrompt spells out the output contract for backends that do not
// support structured response schemas.
const ollamaPrompt = extractPrompt + `

Return ONLY valid JSON in this exact format:
{
  "merchant": "Store Name",
  "total": 0.00,
  "date": "YYYY-MM-DD",
  "category": "Other",
  "summary": "Brief description of items"
}

Important:
- The date must be in YYYY-MM-DD format
- The total must be a number (not a string), representing dollars and cents
- The category must be exactly one of: Food & Dining, Groceries, Transportation, Utilities, Shopping, Health, Entertainment, Other
- The summary is a very brief, 5-word description of items bought
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// responseSchema is the strict output schema sent to Gemini. All fields
// except summary are required by the service contract.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant": {
				Type:        genai.TypeString,
				Description: "The name of the store or merchant.",
			},
			"total": {
				Type:        genai.TypeNumber,
				Description: "The total amount paid.",
			},
			"date": {
				Type:        genai.TypeString,
				Description: "The date of the transaction in YYYY-MM-DD format. Use today's date if not found.",
			},
			"category": {
				Type:        genai.TypeString,
				Enum:        categoryEnum,
				Description: "The best fitting category for this expense.",
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "A very brief, 5-word summary of items bought (e.g. 'Milk, eggs, and bread').",
			},
		},
		Required: []string{"merchant", "total", "category", "date"},
	}
}
