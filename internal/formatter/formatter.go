// package formatter renders onboarding results and stored link records as text, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts text, json, csv, markdown and md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Render renders res in the given format.
func Render(res *tasks.OnboardingResult, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return shared.MarshalJSON(res, true)
	case FormatCSV:
		return ResultToCSV(res)
	case FormatMarkdown:
		return ResultToMarkdown(res), nil
	default:
		return ResultToText(res), nil
	}
}

// WriteResult renders res and writes it to path.
func WriteResult(res *tasks.OnboardingResult, f Format, path string) error {
	data, err := Render(res, f)
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func results(res *tasks.OnboardingResult) []linking.Result {
	if res == nil || res.Links == nil {
		return nil
	}
	return res.Links.Results
}

// Glyph is the single-character status marker used by text output and the TUI.
func Glyph(r linking.Result) string {
	switch {
	case r.Success:
		return "✓"
	case r.Status == models.EntryCompleted:
		return "!"
	case r.Reason == models.ReasonCancelled:
		return "-"
	default:
		return "✗"
	}
}

func account(r linking.Result) string {
	if r.Token == nil {
		return ""
	}
	if r.Token.Account.Username != "" {
		return r.Token.Account.Username
	}
	return r.Token.Account.UserID
}

// InitSummary describes an initialization outcome in one line.
func InitSummary(o *initgate.Outcome, err error) string {
	switch {
	case o == nil && err == nil:
		return "not run"
	case err != nil:
		return "failed: " + err.Error()
	case o.Kind == models.InitTrained:
		return fmt.Sprintf("trained on %d items", o.Result.ItemCount)
	case o.Fallback():
		return "using base model"
	default:
		return string(o.Kind)
	}
}

// ResultToText renders a human readable summary.
func ResultToText(res *tasks.OnboardingResult) []byte {
	var buf bytes.Buffer

	rs := results(res)
	fmt.Fprintf(&buf, "Linked %d of %d providers\n\n", len(res.Linked()), len(rs))
	for _, r := range rs {
		fmt.Fprintf(&buf, "%s %s", Glyph(r), r.ProviderID)
		if a := account(r); a != "" {
			fmt.Fprintf(&buf, " (%s)", a)
		}
		if r.Reason != "" {
			fmt.Fprintf(&buf, " [%s]", r.Reason)
		}
		buf.WriteString("\n")
	}

	fmt.Fprintf(&buf, "\nInitialization: %s\n", InitSummary(res.Init, res.InitErr))
	return buf.Bytes()
}

// ResultToCSV writes one row per provider: Provider, Kind, Status, Success, Reason, Account.
func ResultToCSV(res *tasks.OnboardingResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Provider", "Kind", "Status", "Success", "Reason", "Account"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range results(res) {
		record := []string{
			r.ProviderID,
			string(r.Kind),
			string(r.Status),
			strconv.FormatBool(r.Success),
			string(r.Reason),
			account(r),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ResultToMarkdown renders a session report with a provider table.
func ResultToMarkdown(res *tasks.OnboardingResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Onboarding %s\n\n", res.SessionID)
	buf.WriteString("| Provider | Status | Result |\n")
	buf.WriteString("|----------|--------|--------|\n")
	for _, r := range results(res) {
		outcome := "linked"
		if !r.Success {
			outcome = string(r.Reason)
		}
		fmt.Fprintf(&buf, "| %s | %s | %s |\n", r.ProviderID, r.Status, outcome)
	}

	fmt.Fprintf(&buf, "\n**Initialization**: %s\n", InitSummary(res.Init, res.InitErr))
	if res.Init != nil {
		fmt.Fprintf(&buf, "**Attempts**: %d\n", res.Init.Attempts)
	}
	return buf.Bytes()
}

// RecordsToText lists stored link records, one per line.
func RecordsToText(records []*models.LinkRecord) []byte {
	var buf bytes.Buffer
	if len(records) == 0 {
		buf.WriteString("No linked providers recorded.\n")
		return buf.Bytes()
	}

	for _, rec := range records {
		state := "linked"
		if !rec.Success() {
			state = string(rec.Reason())
			if state == "" {
				state = string(rec.Status())
			}
		}
		fmt.Fprintf(&buf, "%-12s %-10s %s", rec.ProviderID(), state, rec.CreatedAt().Format(time.DateTime))
		if rec.Username() != "" {
			fmt.Fprintf(&buf, "  %s", rec.Username())
		}
		if exp := rec.ExpiresAt(); exp != nil {
			fmt.Fprintf(&buf, "  expires %s", exp.Format(time.DateTime))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// RecordsToCSV writes stored link records with a header row.
func RecordsToCSV(records []*models.LinkRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Session", "Provider", "Status", "Success", "Reason", "Account", "CreatedAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, rec := range records {
		record := []string{
			rec.ID(),
			rec.SessionID(),
			rec.ProviderID(),
			string(rec.Status()),
			strconv.FormatBool(rec.Success()),
			string(rec.Reason()),
			rec.AccountID(),
			rec.CreatedAt().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
