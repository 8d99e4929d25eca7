package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/cmd/smartdoc/ui"
)

var (
	parseFilePath   string
	parseServerURL  string
	parseFormat     string
	parseOutputPath string
	parsePolicy     string
	parseBatchSize  int
	parseMerge      bool
	parseTimeout    time.Duration
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a document image via a running SmartDoc server",
	Long: `Submit a document image to a running SmartDoc server, wait for the
parse to finish, and print or save the rendered output.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFilePath, "file", "f", "", "path to document image (required)")
	parseCmd.Flags().StringVarP(&parseServerURL, "server", "s", "http://localhost:8000", "SmartDoc server URL")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "F", "markdown", "output format: json, markdown, html, structured")
	parseCmd.Flags().StringVarP(&parseOutputPath, "output", "o", "", "output file path (default stdout)")
	parseCmd.Flags().StringVar(&parsePolicy, "policy", "", "failure policy: failFast or bestEffort")
	parseCmd.Flags().IntVar(&parseBatchSize, "batch-size", 0, "max batch size override")
	parseCmd.Flags().BoolVar(&parseMerge, "merge", false, "merge adjacent text blocks into paragraphs")
	parseCmd.Flags().DurationVar(&parseTimeout, "timeout", 10*time.Minute, "overall client timeout")
	_ = parseCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(parseCmd)
}

// taskPayload mirrors the server's task polling response.
type taskPayload struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
	Error  *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		ElementID string `json:"element_id"`
	} `json:"error"`
	Result *struct {
		PageDimensions struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"page_dimensions"`
		ProcessingTimeMs int64 `json:"processing_time_ms"`
		Elements         []struct {
			Type string `json:"type"`
		} `json:"elements"`
	} `json:"result"`
	Document json.RawMessage `json:"document"`
}

// documentPayload is the subset of the rendered document the CLI prints.
type documentPayload struct {
	Format   string `json:"format"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

func runParse(cmd *cobra.Command, args []string) error {
	ui.Init(noColor, verbose)

	ctx, cancel := context.WithTimeout(context.Background(), parseTimeout)
	defer cancel()

	ui.Section("Document Parse")
	ui.Info("File: %s", parseFilePath)
	ui.Info("Server: %s", parseServerURL)
	ui.Newline()

	client := &http.Client{Timeout: 60 * time.Second}

	task, err := submitDocument(ctx, client, parseFilePath)
	if err != nil {
		return err
	}
	ui.Verbose("task id: %s", task.TaskID)

	final, err := waitForTask(ctx, client, task.TaskID)
	if err != nil {
		return err
	}

	switch final.Status {
	case "completed":
	case "cancelled":
		return fmt.Errorf("task %s was cancelled", final.TaskID)
	default:
		if final.Error != nil {
			return fmt.Errorf("parse failed: %s: %s", final.Error.Code, final.Error.Message)
		}
		return fmt.Errorf("parse failed with status %s", final.Status)
	}

	if err := writeDocument(final); err != nil {
		return err
	}

	if final.Result != nil {
		counts := map[string]int{}
		for _, el := range final.Result.Elements {
			counts[el.Type]++
		}
		ui.Newline()
		ui.Success("Parsed %d elements in %dms (%dx%d page)",
			len(final.Result.Elements), final.Result.ProcessingTimeMs,
			final.Result.PageDimensions.Width, final.Result.PageDimensions.Height)
		ui.Verbose("text=%d table=%d figure=%d formula=%d",
			counts["text"], counts["table"], counts["figure"], counts["formula"])
	}
	return nil
}

func submitDocument(ctx context.Context, client *http.Client, path string) (*taskPayload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	fields := map[string]string{
		"output_format":     parseFormat,
		"merge_text_blocks": strconv.FormatBool(parseMerge),
	}
	if parsePolicy != "" {
		fields["failure_policy"] = parsePolicy
	}
	if parseBatchSize > 0 {
		fields["max_batch_size"] = strconv.Itoa(parseBatchSize)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, parseServerURL+"/api/v1/tasks", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submit document: %s", readAPIError(resp))
	}

	var task taskPayload
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &task, nil
}

func waitForTask(ctx context.Context, client *http.Client, taskID string) (*taskPayload, error) {
	spinner := ui.NewSpinner("Waiting for parse...")
	defer spinner.Finish()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for task %s", taskID)
		case <-ticker.C:
		}
		spinner.Tick()

		task, err := fetchTask(ctx, client, taskID)
		if err != nil {
			return nil, err
		}

		switch task.Status {
		case "completed", "failed", "cancelled":
			return task, nil
		case "processing":
			spinner.Describe(fmt.Sprintf("Processing (%s)...", task.Stage))
		}
	}
}

func fetchTask(ctx context.Context, client *http.Client, taskID string) (*taskPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parseServerURL+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll task: %s", readAPIError(resp))
	}

	var task taskPayload
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &task, nil
}

func writeDocument(task *taskPayload) error {
	if len(task.Document) == 0 {
		return fmt.Errorf("server returned no document for task %s", task.TaskID)
	}

	var rendered []byte
	switch parseFormat {
	case "markdown", "html":
		var doc documentPayload
		if err := json.Unmarshal(task.Document, &doc); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		if parseFormat == "markdown" {
			rendered = []byte(doc.Markdown)
		} else {
			rendered = []byte(doc.HTML)
		}
	default:
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, task.Document, "", "  "); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		rendered = pretty.Bytes()
	}

	if parseOutputPath == "" {
		fmt.Println(string(rendered))
		return nil
	}
	if err := os.WriteFile(parseOutputPath, rendered, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	ui.Success("Output written to %s", parseOutputPath)
	return nil
}

// readAPIError extracts the message from an error response envelope.
func readAPIError(resp *http.Response) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Message != "" {
		return fmt.Sprintf("%s (%s)", envelope.Message, resp.Status)
	}
	return resp.Status
}
