package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"fourwcycle/internal/models"

	"gopkg.in/yaml.v3"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "text", "json", "yaml":
		return &printer{w: w, format: format}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

// Value renders v as json or yaml; text falls back to indented json.
func (p *printer) Value(v any) error {
	if p.format == "yaml" {
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(v)); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) Records(records []models.SubmissionRecord) error {
	if p.format != "text" {
		return p.Value(records)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tNAME\tPHOTOS\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Status, truncate(r.Title, 40), r.Name, len(r.Photos), r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (p *printer) Record(r *models.SubmissionRecord) error {
	if p.format != "text" {
		return p.Value(r)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", r.ID)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "Title:\t%s\n", r.Title)
	fmt.Fprintf(tw, "Name:\t%s <%s>\n", r.Name, r.Email)
	fmt.Fprintf(tw, "Route:\t%s\n", r.Route)
	fmt.Fprintf(tw, "Photos:\t%s\n", strings.Join(r.Photos, ", "))
	fmt.Fprintf(tw, "Note:\t%s\n", r.AdminNote)
	fmt.Fprintf(tw, "Created:\t%s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "Updated:\t%s\n", r.UpdatedAt.Format("2006-01-02 15:04:05"))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "\n%s\n", r.Experience)
	return err
}

// toPlain round-trips v through json so yaml output uses the json field names.
func toPlain(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
