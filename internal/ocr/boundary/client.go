package boundary

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/pkg/config"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Client calls the remote OCR service. Documents are passed either by
// signed URL (staged chunks) or inline as base64 (small single-shot
// documents).
type Client struct {
	cfg        config.OCRConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an OCR boundary client. Like the staging client it
// fails fast when credentials are missing.
func NewClient(cfg config.OCRConfig, log *logger.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.NotConfigured("ocr boundary")
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.WithComponent("ocr-client"),
	}, nil
}

// AnalyzeURL analyzes a document reachable at a signed URL
func (c *Client) AnalyzeURL(ctx context.Context, documentURL, documentName string) (*domain.AnalysisResult, error) {
	return c.analyze(ctx, analyzeRequest{
		Model:         c.cfg.Model,
		DocumentName:  documentName,
		DocumentURL:   documentURL,
		IncludeImages: true,
	})
}

// AnalyzeData analyzes a document passed inline as base64
func (c *Client) AnalyzeData(ctx context.Context, data []byte, documentName string) (*domain.AnalysisResult, error) {
	return c.analyze(ctx, analyzeRequest{
		Model:          c.cfg.Model,
		DocumentName:   documentName,
		DocumentBase64: base64.StdEncoding.EncodeToString(data),
		IncludeImages:  true,
	})
}

func (c *Client) analyze(ctx context.Context, payload analyzeRequest) (*domain.AnalysisResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocr: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ocr: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.OcrBoundaryFailed(resp.StatusCode, string(respBody))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("ocr: parse response: %w", err)
	}

	result := &domain.AnalysisResult{
		Pages:    make([]domain.Page, len(parsed.Pages)),
		Language: parsed.Language,
	}
	for i, p := range parsed.Pages {
		page := domain.Page{Index: p.Index, Text: p.Text}
		for _, img := range p.Images {
			page.Images = append(page.Images, toPageImage(p.Index, img))
		}
		result.Pages[i] = page
	}

	if result.Language == "" {
		result.Language = detectLanguage(result)
	}

	c.log.Debug().
		Str("document", payload.DocumentName).
		Int("pages", len(result.Pages)).
		Str("language", result.Language).
		Msg("document analyzed")
	return result, nil
}

// toPageImage applies the two-state image contract: a delivered base64
// payload, or an unresolved reference carrying only the remote id.
func toPageImage(pageIndex int, img responseImage) domain.PageImage {
	out := domain.PageImage{
		PageIndex: pageIndex,
		ID:        img.ID,
		Width:     img.Width,
		Height:    img.Height,
		X:         img.X,
		Y:         img.Y,
	}
	if img.Data == "" {
		out.Unresolved = true
		out.Ref = img.ID
		return out
	}
	out.Data = img.Data
	return out
}

type analyzeRequest struct {
	Model          string `json:"model"`
	DocumentName   string `json:"document_name"`
	DocumentURL    string `json:"document_url,omitempty"`
	DocumentBase64 string `json:"document_base64,omitempty"`
	IncludeImages  bool   `json:"include_images"`
}

type analyzeResponse struct {
	Pages    []responsePage `json:"pages"`
	Language string         `json:"language"`
}

type responsePage struct {
	Index  int             `json:"index"`
	Text   string          `json:"text"`
	Images []responseImage `json:"images"`
}

type responseImage struct {
	ID     string `json:"id"`
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "is", "that", "with"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "mit"},
	"fr": {"le", "la", "les", "et", "est", "dans", "pour"},
	"es": {"el", "la", "los", "que", "es", "por", "con"},
}

// detectLanguage is a best-effort stopword vote used only when the remote
// service omits a language
func detectLanguage(result *domain.AnalysisResult) string {
	var text strings.Builder
	for _, p := range result.Pages {
		text.WriteString(strings.ToLower(p.Text))
		text.WriteByte(' ')
	}
	words := strings.Fields(text.String())
	if len(words) == 0 {
		return ""
	}

	counts := make(map[string]int, len(stopwords))
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?()[]\"'")
		for lang, markers := range stopwords {
			for _, marker := range markers {
				if word == marker {
					counts[lang]++
				}
			}
		}
	}

	best, bestCount := "", 0
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	return best
}
