// internal/plan/prompts.go
package plan

import "fmt"

// plannerSystemPrompt frames the oracle as a JSON-emitting planner. The
// Executor side of the contract only understands snapshot element ids.
const plannerSystemPrompt = `You are the PLANNER. Output a JSON plan for an Executor to run.
The Executor can only click/type using element IDs from snapshots.
Include explicit verification predicates per step.
Use stop_if_true for sign-in redirect after checkout.
If a soft-block page appears with a 'Click to Continue' button, include an optional substep to detect and click it.
Do NOT hardcode product URLs like /dp/product-url; use a CLICK step on the first product link.`

const replanSystemPrompt = `You are the PLANNER. Output a JSON plan for an Executor to run.
Keep the same JSON format as the original plan.
Only include the remaining steps from the current point onward.
Do not include any extra keys beyond the schema.
Actions must be one of: NAVIGATE, CLICK, TYPE_AND_SUBMIT.
Step ids in a replan MUST start at 1 and be contiguous.
Do NOT hardcode product URLs like /dp/product-url; use CLICK on a product link.`

const strictNote = "\nReturn ONLY a JSON object. Do not include any other text.\n"

const planFormatExample = `{
  "task": "Shopping cart checkout flow",
  "notes": ["Executor uses stealth typing", "Stop on sign-in redirect"],
  "steps": [
    {
      "id": 1,
      "goal": "Navigate to the store homepage",
      "action": "NAVIGATE",
      "target": "https://www.amazon.com",
      "verify": [{ "predicate": "url_contains", "args": ["amazon."] }],
      "required": true,
      "optional_substeps": [
        {
          "id": 1,
          "goal": "If soft-block appears, click 'Click to Continue'",
          "action": "CLICK",
          "intent": "soft_block_continue",
          "verify": [{ "predicate": "not_exists", "args": ["text~'Click to Continue'"] }],
          "required": false
        }
      ]
    },
    {
      "id": 2,
      "goal": "Focus the search box",
      "action": "CLICK",
      "intent": "search_box",
      "verify": [{ "predicate": "exists", "args": ["role=textbox"] }],
      "required": true
    },
    {
      "id": 3,
      "goal": "Type search query with human-like jitter and submit",
      "action": "TYPE_AND_SUBMIT",
      "input": "laptop",
      "verify": [{ "predicate": "url_contains", "args": ["k=laptop"] }],
      "required": true
    },
    {
      "id": 4,
      "goal": "Click the FIRST product link in search results",
      "action": "CLICK",
      "intent": "first_product_link",
      "verify": [{ "predicate": "url_contains", "args": ["/dp/"] }],
      "required": true
    },
    {
      "id": 5,
      "goal": "Add product to cart and handle optional drawer",
      "action": "CLICK",
      "intent": "add_to_cart",
      "verify": [
        { "predicate": "any_of", "args": [
          { "predicate": "exists", "args": ["text~'Added to Cart'"] },
          { "predicate": "url_contains", "args": ["cart"] }
        ]}
      ],
      "required": true,
      "optional_substeps": [
        {
          "goal": "If 'Add to Your Order' drawer appears, click 'No thanks'",
          "action": "CLICK",
          "intent": "drawer_no_thanks",
          "verify": [{ "predicate": "not_exists", "args": ["text~'Add to Your Order'"] }],
          "required": false
        }
      ]
    },
    {
      "id": 6,
      "goal": "Proceed to checkout",
      "action": "CLICK",
      "intent": "proceed_to_checkout",
      "verify": [{ "predicate": "any_of", "args": [
        { "predicate": "url_contains", "args": ["signin"] },
        { "predicate": "url_contains", "args": ["/ap/"] }
      ]}],
      "required": false,
      "stop_if_true": true
    }
  ]
}`

const replanFormatExample = `{
  "task": "Shopping cart checkout flow",
  "notes": ["Use snapshot IDs only"],
  "steps": [
    {
      "id": 1,
      "goal": "Focus the search box",
      "action": "CLICK",
      "intent": "search_box",
      "verify": [{ "predicate": "exists", "args": ["role=textbox"] }],
      "required": true
    },
    {
      "id": 2,
      "goal": "Type search query with human-like jitter and submit",
      "action": "TYPE_AND_SUBMIT",
      "input": "laptop",
      "verify": [{ "predicate": "url_contains", "args": ["k=laptop"] }],
      "required": true
    }
  ]
}`

// BuildPlannerPrompt renders the system and user prompts for an initial plan
// request. Strict mode is used on retry attempts after a failed extraction.
func BuildPlannerPrompt(task string, strict bool, schemaErrors string) (string, string) {
	note := ""
	if strict {
		note = strictNote
	}
	schemaNote := ""
	if schemaErrors != "" {
		schemaNote = fmt.Sprintf("\nSchema errors from last attempt:\n%s\n", schemaErrors)
	}
	user := fmt.Sprintf(`Task: %s
%s%s
Output JSON with fields:
- task: string
- notes: list of strings
- steps: list of steps (id, goal, action, target/intent/input, verify, required, stop_if_true?, optional_substeps?)

Predicates allowed: url_contains, url_matches, exists, not_exists, element_count, any_of, all_of.
Note: url_contains expects a single string; use any_of for multiple options.

Format example (match keys exactly):
%s
`, task, note, schemaNote, planFormatExample)
	return plannerSystemPrompt, user
}

// BuildReplanPrompt renders the system and user prompts for a corrective
// replan request. Feedback carries the failed step context; schemaErrors, if
// non-empty, is the validator output from the previous replan attempt.
func BuildReplanPrompt(task, feedback string, strict bool, schemaErrors string) (string, string) {
	note := ""
	if strict {
		note = strictNote
	}
	schemaNote := ""
	if schemaErrors != "" {
		schemaNote = fmt.Sprintf("\nSchema errors from last attempt:\n%s\n", schemaErrors)
	}
	user := fmt.Sprintf(`Task: %s
%s
Execution feedback:
%s
%s
Return a revised JSON plan for the remaining steps only.

Format example (match keys exactly):
%s
`, task, note, feedback, schemaNote, replanFormatExample)
	return replanSystemPrompt, user
}
