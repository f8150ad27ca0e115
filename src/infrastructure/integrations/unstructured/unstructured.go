package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"ragdesk/src/log"
)

type UnstructuredService struct {
	baseURL string
	client  *http.Client
}

type UnstructuredElement struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	ElementID string   `json:"element_id"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	Filename   string `json:"filename,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
}

func NewUnstructuredService(baseURL string) *UnstructuredService {
	return &UnstructuredService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Partition sends a file to the partition endpoint and returns its elements in
// document order. No chunking is requested; chunking happens downstream.
func (s *UnstructuredService) Partition(ctx context.Context, filename string, content []byte) ([]UnstructuredElement, error) {
	var requestBody bytes.Buffer
	multipartWriter := multipart.NewWriter(&requestBody)

	fileWriter, err := multipartWriter.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := multipartWriter.WriteField("output_format", "application/json"); err != nil {
		return nil, fmt.Errorf("failed to write output format: %w", err)
	}
	if err := multipartWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/general/v0/general", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error(fmt.Errorf("status %s", resp.Status), "partition request failed", "filename", filename, "response", string(body))
		return nil, fmt.Errorf("partition service error: %s", resp.Status)
	}

	var elements []UnstructuredElement
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return elements, nil
}

// PartitionText joins the text of all elements, one element per paragraph.
func (s *UnstructuredService) PartitionText(ctx context.Context, filename string, content []byte) (string, error) {
	elements, err := s.Partition(ctx, filename, content)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		if t := strings.TrimSpace(el.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
