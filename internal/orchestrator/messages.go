package orchestrator

import "fmt"

// User-facing fragments for runs that end without a model answer.
const (
	EmptyInputMessage     = "Please enter a question about medications, stock availability, or prescriptions."
	NoResponseMessage     = "I'm sorry, I wasn't able to generate a response. Please try rephrasing your question."
	MaxIterationsMessage  = "I'm sorry, I couldn't complete your request: it needed too many lookup steps. Please try a more specific question."
	LoginRequiredMessage  = "Please log in to access this information."
	RepeatedAuthMessage   = "I'm sorry, I can't access that information: the same authorization error was repeated. Please log in with the right account and try again."
	modelErrorMessageBase = "I'm sorry, an error occurred while generating a response: %v"
)

func modelErrorMessage(err error) string {
	return fmt.Sprintf(modelErrorMessageBase, err)
}
