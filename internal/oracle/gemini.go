// Package oracle is the client for the external problem-generation and
// code-evaluation engine. Every failure — missing credentials, network,
// malformed model output — degrades to a fixed, well-formed fallback
// value; callers never see an error.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pairdesk/native/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewClient creates an oracle client. An empty apiKey is allowed: both
// calls then serve their fallbacks without going to the network.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// GenerateProblem asks the model for a fresh interview problem at the
// given difficulty. Any failure yields the fixed fallback problem.
func (c *Client) GenerateProblem(ctx context.Context, difficulty domain.Difficulty) domain.Problem {
	prompt := fmt.Sprintf("Generate a unique, %s-level coding interview problem similar to LeetCode.", difficulty)

	text, err := c.generate(ctx, prompt, problemSchema, 0.8)
	if err != nil {
		log.Printf("[oracle] generate problem: %v", err)
		return FallbackProblem()
	}

	var p domain.Problem
	if err := json.Unmarshal([]byte(cleanJSON(text)), &p); err != nil {
		log.Printf("[oracle] decode problem: %v", err)
		return FallbackProblem()
	}
	if p.ID == "" || p.Title == "" {
		log.Printf("[oracle] incomplete problem from model")
		return FallbackProblem()
	}
	return p
}

// EvaluateCode asks the model to judge the submission against the
// problem. Any failure yields the fixed failure-shaped result.
func (c *Client) EvaluateCode(ctx context.Context, problem domain.Problem, code string) domain.ExecutionResult {
	prompt := fmt.Sprintf(`You are a code execution engine and judge.

Problem: %s
Description: %s

User Code:
%s

Task:
1. Analyze the code for correctness against the problem description.
2. Simulate running the code against 3-5 edge cases and standard cases.
3. Determine if it passes.
`, problem.Title, problem.Description, code)

	text, err := c.generate(ctx, prompt, resultSchema, 0.2)
	if err != nil {
		log.Printf("[oracle] evaluate code: %v", err)
		return FallbackResult()
	}

	var r domain.ExecutionResult
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		log.Printf("[oracle] decode result: %v", err)
		return FallbackResult()
	}
	return r
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
	Temperature      float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// schema is the structured-output schema the model is constrained to.
type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

var problemSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"id":          {Type: "STRING"},
		"title":       {Type: "STRING"},
		"description": {Type: "STRING"},
		"difficulty":  {Type: "STRING"},
		"tags":        {Type: "ARRAY", Items: &schema{Type: "STRING"}},
		"examples": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"input":       {Type: "STRING"},
					"output":      {Type: "STRING"},
					"explanation": {Type: "STRING"},
				},
			},
		},
		"starterCode": {Type: "STRING"},
	},
	Required: []string{"id", "title", "description", "difficulty", "tags", "examples", "starterCode"},
}

var resultSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"passed":          {Type: "BOOLEAN"},
		"output":          {Type: "STRING"},
		"error":           {Type: "STRING"},
		"feedback":        {Type: "STRING"},
		"testCasesPassed": {Type: "NUMBER"},
		"totalTestCases":  {Type: "NUMBER"},
	},
	Required: []string{"passed", "output", "feedback", "testCasesPassed", "totalTestCases"},
}

// generate performs one generateContent call and returns the model's text.
func (c *Client) generate(ctx context.Context, prompt string, outputSchema *schema, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   outputSchema,
			Temperature:      temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded generateResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// cleanJSON strips markdown code fences the model sometimes wraps its
// JSON output in.
func cleanJSON(text string) string {
	clean := strings.TrimSpace(text)
	if strings.HasPrefix(clean, "```") {
		if idx := strings.Index(clean, "\n"); idx >= 0 {
			clean = clean[idx+1:]
		}
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	}
	return strings.TrimSpace(clean)
}

// FallbackProblem is served when generation fails for any reason. It is
// always well-formed and usable without further calls.
func FallbackProblem() domain.Problem {
	return domain.Problem{
		ID:          "two-sum",
		Title:       "Two Sum (Fallback)",
		Description: "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target.",
		Difficulty:  domain.DifficultyEasy,
		Tags:        []string{"Array", "Hash Table"},
		Examples: []domain.ProblemExample{
			{
				Input:       "nums = [2,7,11,15], target = 9",
				Output:      "[0,1]",
				Explanation: "Because nums[0] + nums[1] == 9, we return [0, 1].",
			},
		},
		StarterCode: "function twoSum(nums, target) {\n  // Your code here\n};",
	}
}

// FallbackResult is served when evaluation fails for any reason.
func FallbackResult() domain.ExecutionResult {
	return domain.ExecutionResult{
		Passed:          false,
		Output:          "",
		Error:           "Failed to evaluate code. Please try again.",
		Feedback:        "System error.",
		TestCasesPassed: 0,
		TotalTestCases:  0,
	}
}
