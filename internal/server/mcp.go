package server

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/reflexion-go/internal/logger"
)

// Tool names exposed over MCP.
const (
	ToolRefineTweet    = "refine_tweet"
	ToolAnswerQuestion = "answer_question"
)

// MCPTools adapts both pipelines to MCP tool handlers.
type MCPTools struct {
	refiner  Refiner
	answerer Answerer
}

// NewMCPServer registers the pipelines as MCP tools.
func NewMCPServer(refiner Refiner, answerer Answerer, version string) *server.MCPServer {
	tools := &MCPTools{refiner: refiner, answerer: answerer}
	s := server.NewMCPServer("reflexion", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(ToolRefineTweet,
		mcp.WithDescription("Draft a tweet and refine it through several rounds of critique. Returns the final tweet."),
		mcp.WithString("request", mcp.Required(), mcp.Description("What the tweet should be about.")),
	), tools.RefineTweet)

	s.AddTool(mcp.NewTool(ToolAnswerQuestion,
		mcp.WithDescription("Answer a question with a self-critique and follow-up search queries, as JSON."),
		mcp.WithString("request", mcp.Required(), mcp.Description("The question to answer.")),
	), tools.AnswerQuestion)

	return s
}

// RefineTweet handles the refine_tweet tool.
func (t *MCPTools) RefineTweet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.refiner.Run(ctx, text)
	if err != nil {
		logger.L.Warn("MCP refine_tweet failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Output.Content), nil
}

// AnswerQuestion handles the answer_question tool.
func (t *MCPTools) AnswerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := t.answerer.Respond(ctx, text)
	if err != nil {
		logger.L.Warn("MCP answer_question failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.Marshal(answer)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
