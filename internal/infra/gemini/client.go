package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"google.golang.org/genai"
)

// DefaultModel はデフォルトで使用するGeminiモデル
const DefaultModel = "gemini-2.0-flash"

// Client は Google GenAI SDK で generateContent を1回呼び出す Transport 実装
type Client struct {
	client *genai.Client
	model  string
}

// NewClient はAPIキーとモデルを指定して Client を作成する
// baseURL が空の場合は SDK のデフォルトエンドポイントを使う
func NewClient(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, gateway.ErrAPIKeyNotSet
	}

	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Send は generateContent を1回呼び出す
func (c *Client) Send(ctx context.Context, req gateway.CompletionRequest) (string, string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.UserContent), config)
	if err != nil {
		return "", "", translateError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", "", fmt.Errorf("%w: no candidates returned", gateway.ErrMalformedResponse)
	}

	responseModel := resp.ModelVersion
	if responseModel == "" {
		responseModel = model
	}

	return resp.Text(), responseModel, nil
}

func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("GenAI generateContent failed: %w", &gateway.StatusError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
		})
	}

	return fmt.Errorf("GenAI generateContent failed: %w", err)
}

// インターフェース実装の確認
var _ gateway.Transport = (*Client)(nil)
