package models

const (
	// ContextBlockTemplate formats one retrieved chunk for the generation
	// prompt: source label first, then the chunk text.
	ContextBlockTemplate = "[Source %d: %s]\n%s"

	ContextSeparator = "\n\n"

	NoContextFound = "No relevant context found."
)

var (
	RAGPromptTemplate = `Based on the following context, please answer the question:

Context:
%s

Question: %s

Please provide a comprehensive answer based on the context provided above.`
)
