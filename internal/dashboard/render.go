package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eternisai/maintenance-tracker/internal/analytics"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

const (
	// NoCategory is shown on the stats card until some request is categorized.
	NoCategory = "N/A"
	// DefaultCategory labels a request the backend has not categorized yet.
	DefaultCategory = "General"

	maxTitleWidth = 40
)

// Caption returns the "N request(s) total" line.
func Caption(total int) string {
	if total == 1 {
		return "1 request total"
	}
	return strconv.Itoa(total) + " requests total"
}

// RenderStats writes the three stats cards.
func RenderStats(w io.Writer, st analytics.State) error {
	total, category, high := "...", "...", "..."
	if st.Stats != nil {
		total = strconv.Itoa(st.Stats.TotalRequests)
		category = st.Stats.CategoryOr(NoCategory)
		high = strconv.Itoa(st.Stats.HighPriorityCount)
	} else if !st.IsLoading {
		total, category, high = "0", NoCategory, "0"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Total Requests\tMost Frequent Category\tHigh Priority Issues")
	fmt.Fprintf(tw, "%s\t%s\t%s\n", total, category, high)
	if err := tw.Flush(); err != nil {
		return err
	}

	if st.Err != "" {
		_, err := fmt.Fprintf(w, "Failed to load analytics: %s\n", st.Err)
		return err
	}
	return nil
}

// RenderRequests writes the request table for the current page, with the
// caption, loading and error states and the pagination footer.
func RenderRequests(w io.Writer, st requests.State) error {
	if _, err := fmt.Fprintf(w, "All Requests (%s)\n", Caption(st.Total)); err != nil {
		return err
	}

	switch {
	case st.IsLoading && len(st.Items) == 0:
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	case st.Err != "":
		if _, err := fmt.Fprintf(w, "Failed to load: %s\n", st.Err); err != nil {
			return err
		}
	}

	if len(st.Items) == 0 {
		if st.Err != "" {
			return nil
		}
		_, err := fmt.Fprintln(w, "No requests yet\nCreate your first maintenance request to get started.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAI CATEGORY\tPRIORITY\tSTATUS\tCREATED")
	for _, item := range st.Items {
		category := DefaultCategory
		if item.Category != nil && *item.Category != "" {
			category = *item.Category
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			truncate(item.Title, maxTitleWidth),
			badge(category),
			badge(string(item.Priority)),
			badge(string(item.Status)),
			createdDate(item.CreatedAt))
		if item.AISummary != nil && *item.AISummary != "" {
			fmt.Fprintf(tw, "\t  %s\t\t\t\t\n", truncate(*item.AISummary, maxTitleWidth))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if st.Pages > 1 {
		_, err := fmt.Fprintf(w, "Page %d of %d\n", st.Page, st.Pages)
		return err
	}
	return nil
}

func badge(label string) string {
	return "[" + label + "]"
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// createdDate shows the date part of a timestamp, or the raw value when it
// does not parse.
func createdDate(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
