package main

// Run conversion, extraction and normalization for one local file:
//   go run ./cmd/extract -file invoice.pdf

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"invoice-backend/internal/extract"
	"invoice-backend/internal/invoice"
	"invoice-backend/internal/llm/openai"
	"invoice-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to an invoice or receipt (pdf, png, jpg)")
	model := flag.String("model", cfg.LLMModel, "Model name")
	rawOut := flag.String("raw", "", "Path to write the raw completion (optional)")
	outPath := flag.String("out", "", "Path to write normalized JSON (optional)")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}

	mimeType, err := mimeFromExt(*filePath)
	if err != nil {
		exitErr(err.Error())
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	ctx := context.Background()
	input, err := extract.NewConverter(cfg.MaxPDFPages).Prepare(ctx, data, mimeType, filepath.Base(*filePath))
	if err != nil {
		exitErr(fmt.Sprintf("prepare input: %v", err))
	}

	client, err := openai.NewClient(openai.Options{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     *model,
		Timeout:   cfg.LLMTimeout,
		MaxTokens: cfg.LLMMaxTokens,
		JSONMode:  cfg.LLMJSONMode,
	})
	if err != nil {
		exitErr(err.Error())
	}

	raw, err := client.Extract(ctx, input)
	if err != nil {
		exitErr(fmt.Sprintf("extract: %v", err))
	}
	if *rawOut != "" {
		if err := os.WriteFile(*rawOut, []byte(raw), 0o644); err != nil {
			exitErr(fmt.Sprintf("write raw output: %v", err))
		}
	}

	normalized, dropped, err := invoice.NormalizeReport(raw)
	if err != nil {
		exitErr(fmt.Sprintf("normalize: %v", err))
	}
	if len(dropped) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "dropped: %s\n", strings.Join(dropped, ", "))
	}

	pretty, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
		return
	}
	fmt.Println(string(pretty))
}

func mimeFromExt(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extract.MimePDF, nil
	case ".png":
		return extract.MimePNG, nil
	case ".jpg", ".jpeg":
		return extract.MimeJPEG, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
