package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

const (
	classifyPromptFormat = `You are an expert email classifier. Analyze the following email and categorize it into exactly one of these labels: Interested, Meeting Booked, Not Interested, Spam, or Out of Office.
Respond only with a JSON object of the form {"category": "<label>"} and nothing else.

Subject: %s

Body:
%s`
	replyPromptFormat = `You are a helpful assistant that writes professional, relevant email replies. Based ONLY on the context provided and the original email, draft a professional and helpful reply. Be concise.

Context: %s

Original Email Subject: %s

Original Email Body: %s

Please provide a professional email reply.`
)

// BedrockClient is an implementation of the LLMClient interface using Amazon Bedrock
type BedrockClient struct {
	client           *bedrockruntime.Client
	modelID          string
	embeddingModelID string
	maxTokens        int
	temperature      float32
	topP             float32
	maxBodySize      int
	logger           *zap.Logger
	textProcessor    *utils.TextProcessor
}

type categoryResponse struct {
	Category string `json:"category"`
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	embeddingModelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:           client,
		modelID:          modelID,
		embeddingModelID: embeddingModelID,
		maxTokens:        maxTokens,
		temperature:      temperature,
		topP:             topP,
		maxBodySize:      maxBodySize,
		logger:           logger,
		textProcessor:    textProcessor,
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

// CategorizeEmail classifies an email into one of the closed category labels
func (c *BedrockClient) CategorizeEmail(ctx context.Context, subject, body string) (core.Category, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(classifyPromptFormat, subject, processedBody)

	responseText, err := c.invoke(ctx, prompt)
	if err != nil {
		return core.CategoryUncategorized, err
	}

	var parsed categoryResponse
	if err := c.unmarshalResponse(responseText, &parsed); err != nil {
		return core.CategoryUncategorized, err
	}

	category, err := core.ParseCategory(parsed.Category)
	if err != nil {
		return core.CategoryUncategorized, fmt.Errorf("classifier returned invalid label: %w", err)
	}
	return category, nil
}

// GenerateReply drafts a reply to the email using the given context
func (c *BedrockClient) GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(replyPromptFormat, replyContext, subject, processedBody)
	return c.invoke(ctx, prompt)
}

// EmbedText computes an embedding vector via the Titan embeddings model
func (c *BedrockClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"inputText": c.textProcessor.ProcessText(text, c.maxBodySize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.embeddingModelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke embedding model: %w", err)
	}

	var embeddingResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(resp.Body, &embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %w", err)
	}
	return embeddingResp.Embedding, nil
}

// invoke calls the text model with a payload shaped for its family and
// returns the raw response text.
func (c *BedrockClient) invoke(ctx context.Context, prompt string) (string, error) {
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(resp.Body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(resp.Body), nil
}

// unmarshalResponse parses a JSON object out of the model output, extracting
// the outermost braces when the model wraps the JSON in prose.
func (c *BedrockClient) unmarshalResponse(responseText string, v interface{}) error {
	if err := json.Unmarshal([]byte(responseText), v); err == nil {
		return nil
	}

	jsonStart := strings.IndexByte(responseText, '{')
	jsonEnd := strings.LastIndexByte(responseText, '}')
	if jsonStart < 0 || jsonEnd < jsonStart {
		return fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}
