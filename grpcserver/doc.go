// Package grpcserver exposes an agent.Agent as agent.v1.AgentService.
//
// The service offers:
//   - ProcessMessage, unary, returning the complete response
//   - ProcessMessageStream, server-streaming MessageChunk values that end with
//     one final chunk carrying usage and metadata
//   - GetConversationHistory with cursor pagination
//   - ListModels and HealthCheck
//
// Messages travel with the JSON codec from the pb package. The server listens
// on a Unix socket by default, or on TCP.
package grpcserver
