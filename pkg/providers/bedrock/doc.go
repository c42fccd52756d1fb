// Package bedrock implements llm.Client for AWS Bedrock using the Converse API,
// so every text model hosted on Bedrock is driven through one request shape.
//
// System messages become Converse system blocks, reasoning blocks are reported
// as reasoning content, and JSON response formats are requested in the system
// prompt. Credentials come from the AWS SDK default chain.
//
//	client, err := bedrock.NewClient(llm.ClientConfig{
//	    Provider: "bedrock",
//	    Model:    "anthropic.claude-3-haiku-20240307-v1:0",
//	    Extra:    map[string]string{"region": "us-east-1"},
//	})
package bedrock
