package models

const (
	ContextSeparator = "\n\n---\n\n"
	SourcePreviewLen = 100
	DefaultStoreName = "default_index"
)

var (
	// QASystemPrompt takes the retrieved context as its only argument.
	QASystemPrompt = `You are an assistant for question-answering tasks. Use only the following retrieved context to answer the question. If the context is not sufficient to answer, just say that you don't know. Keep the answer concise and accurate.

%s`

	ErrorAnswerTemplate = "Sorry, an error occurred: %v"
)
