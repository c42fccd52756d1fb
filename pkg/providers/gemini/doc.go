// Package gemini implements llm.Client for Google Gemini models using the
// official google.golang.org/genai SDK.
//
// System messages become the system instruction of the chat session, thought
// parts are reported as reasoning content, and JSON response formats are
// requested through the instruction plus the JSON response MIME type.
//
//	client, err := gemini.NewClient(llm.ClientConfig{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	    Model:  "gemini-2.5-flash",
//	})
package gemini
