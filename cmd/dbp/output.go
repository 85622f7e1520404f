// ABOUTME: Output formatting for the dbp client: colored summaries or raw JSON
// ABOUTME: Error envelopes print their code and message and set a non-zero exit

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/dbp-gateway/internal/client"
	"github.com/2389/dbp-gateway/internal/mcp"
)

type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// failed prints an error envelope and returns the exit error.
func (p *printer) failed(resp mcp.Response) error {
	if resp.Error == nil {
		return exitError(1)
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(p.w, "%s", resp.Error.Code)
	fmt.Fprintf(p.w, ": %s\n", resp.Error.Message)
	if len(resp.Error.Data) > 0 {
		keys := make([]string, 0, len(resp.Error.Data))
		for k := range resp.Error.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.w, "  %s %v\n", color.HiBlackString(k+":"), resp.Error.Data[k])
		}
	}
	return exitError(1)
}

func (p *printer) response(resp mcp.Response) error {
	if p.json {
		if err := p.writeJSON(resp); err != nil {
			return err
		}
		if resp.Status != mcp.StatusSuccess {
			return exitError(1)
		}
		return nil
	}
	if resp.Status != mcp.StatusSuccess {
		return p.failed(resp)
	}
	// Documents read as text print verbatim.
	if content, ok := resp.Result["content"].(string); ok && len(resp.Result) <= 3 {
		_, err := fmt.Fprint(p.w, content)
		if !strings.HasSuffix(content, "\n") {
			fmt.Fprintln(p.w)
		}
		return err
	}
	return p.writeJSON(resp.Result)
}

func (p *printer) query(resp mcp.Response) error {
	if p.json || resp.Status != mcp.StatusSuccess {
		return p.response(resp)
	}

	answer, _ := resp.Result["answer"].(string)
	fmt.Fprintln(p.w, answer)

	matches, _ := resp.Result["matches"].([]any)
	for i, m := range matches {
		match, _ := m.(map[string]any)
		path, _ := match["path"].(string)
		title, _ := match["title"].(string)
		score, _ := match["score"].(float64)
		snippet, _ := match["snippet"].(string)

		fmt.Fprintf(p.w, "\n%s %s", color.CyanString("%d.", i+1), path)
		if title != "" {
			fmt.Fprintf(p.w, " %s", color.New(color.Bold).Sprintf("%q", title))
		}
		fmt.Fprintf(p.w, " %s\n", color.HiBlackString("(score %.0f)", score))
		if snippet != "" {
			fmt.Fprintf(p.w, "   %s\n", snippet)
		}
	}
	return nil
}

func (p *printer) progress(u mcp.ProgressUpdate) {
	if p.json {
		return
	}
	if u.Total > 0 {
		fmt.Fprintf(p.w, "%s %s\n", color.HiBlackString("[%.0f/%.0f]", u.Progress, u.Total), u.Message)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", color.HiBlackString("[%.0f]", u.Progress), u.Message)
}

func (p *printer) descriptors(list []client.Descriptor) error {
	if p.json {
		return p.writeJSON(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(p.w, "nothing available to this client")
		return nil
	}
	width := 0
	for _, d := range list {
		width = max(width, len(d.Name))
	}
	for _, d := range list {
		fmt.Fprintf(p.w, "%s  %s\n", color.CyanString("%-*s", width, d.Name), d.Description)
	}
	return nil
}

func (p *printer) ready(r *client.ReadyStatus) error {
	if p.json {
		if err := p.writeJSON(r); err != nil {
			return err
		}
	} else {
		if r.Ready {
			color.New(color.FgGreen).Fprintln(p.w, "healthy")
		} else {
			color.New(color.FgYellow).Fprintln(p.w, "alive, not ready")
		}
		for _, c := range r.Components {
			mark := color.GreenString("✓")
			if !c.Initialized {
				mark = color.RedString("✗")
			}
			fmt.Fprintf(p.w, "  %s %s\n", mark, c.Name)
		}
	}
	if !r.Ready {
		return exitError(1)
	}
	return nil
}
