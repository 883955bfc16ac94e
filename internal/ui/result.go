package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/urls"
)

// ResultType selects the colour and marker of a result box.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is the box printed when a session ends.
type Result struct {
	Type            ResultType
	Title           string
	Details         map[string]string
	Error           error
	Troubleshooting []string
	Width           int
}

// NewCloseResult summarises an OnClose event. A clean close is a success;
// anything else is a warning.
func NewCloseResult(code protocol.CloseCode, reason string, wasClean bool) *Result {
	r := &Result{
		Type:  ResultSuccess,
		Title: "Connection closed",
		Width: GetTerminalWidth(),
	}
	if !wasClean {
		r.Type = ResultWarning
		r.Title = "Connection closed uncleanly"
	}
	r.AddDetail("Code", fmt.Sprintf("%d (%s)", uint16(code), code))
	if reason != "" {
		r.AddDetail("Reason", reason)
	}
	r.AddDetail("Clean", fmt.Sprintf("%t", wasClean))
	if !wasClean || !code.Sendable() {
		r.Troubleshooting = []string{"Close codes: " + urls.CloseCodeRegistry}
	}
	return r
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string
	lines = append(lines, "")
	switch r.Type {
	case ResultFailure:
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)))
	case ResultWarning:
		lines = append(lines, WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, r.Title)))
	default:
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("   %s  %s", SuccessMarker, r.Title)))
	}
	lines = append(lines, "")

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		keyStyled := ResultKeyStyle.Render(fmt.Sprintf("   %s:", key))
		lines = append(lines, keyStyled+" "+ResultValueStyle.Render(r.Details[key]))
	}
	if len(keys) > 0 {
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, TroubleshootingTitleStyle.Render("   Troubleshooting:"))
		for _, tip := range r.Troubleshooting {
			lines = append(lines, TroubleshootingItemStyle.Render("     • "+tip))
		}
		lines = append(lines, "")
	}

	color := SuccessColor
	switch r.Type {
	case ResultFailure:
		color = ErrorColor
	case ResultWarning:
		color = WarningColor
	}
	return ResultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// Troubleshoot returns hints for a connection failure.
func Troubleshoot(err error) []string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "x509") || strings.Contains(msg, "trusted"):
		return []string{
			"Check the server certificate chain and host name",
			"Use --ca-file to trust a private CA",
			"Use --insecure only against development servers",
		}
	case strings.Contains(msg, "refused"):
		return []string{
			"Check that the server is running and the port is correct",
			"Try 'wsproto discover' to find servers on the local network",
		}
	case strings.Contains(msg, "handshake"):
		return []string{
			"Check the request path; servers often reject unknown paths",
			"Check the offered subprotocols with --subprotocol",
			"Upgrade rules: " + urls.OpeningHandshake,
		}
	}
	return nil
}
