package analyzer

// Placeholder is returned by both entry points when no model client exists.
const Placeholder = "[Simulated analysis]\n" +
	"The page looks normal; no alert information was found.\n\n" +
	"This is a simulated result. Configure model credentials to get a real analysis."

// MaxPromptChars caps how much page text is inserted into the text prompt.
const MaxPromptChars = 3000

const textSystemPrompt = "You are a professional system-monitoring assistant who is good at " +
	"spotting alert information in text."

const imageSystemPrompt = "You are a professional system-monitoring assistant who is good at " +
	"spotting alert information in screenshots."

const reportInstructions = `If you find an anomaly, write a detailed alert report that includes:
1. Alert level (critical/warning/info)
2. Alert content
3. Possible cause
4. Recommended action

If nothing abnormal is found, state that the page is normal.`

const textPromptFormat = `Analyze the following web page content and focus on whether it shows alerts, errors or other anomalies.
` + reportInstructions + `

Web page content:
%s
`

const imagePrompt = `Analyze the following web page screenshot and focus on whether it shows alerts, errors or other anomalies.
` + reportInstructions

const (
	textFailureFormat  = "error analyzing text: %v\n\nThis is an error message; the model could not produce an analysis."
	imageFailureFormat = "error analyzing image: %v\n\nThis is an error message; the model could not produce an analysis."
)
