package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cdash/internal/aggregate"
	"cdash/internal/api"
	"cdash/internal/dashboard"
	"cdash/internal/filter"
	"cdash/internal/format"
	"cdash/internal/summary"
)

var (
	filterSearch    string
	filterStatus    string
	filterCategory  string
	filterSentiment string

	matrixDimension string
	matrixPNG       string

	digestSend bool

	benchCompetitor int64
	benchLimit      int
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Print the dashboard overview",
	RunE:  runOverview,
}

var complaintsCmd = &cobra.Command{
	Use:   "complaints",
	Short: "List complaints with the table filters applied",
	Long: `Lists the complaints table. --status and --category take the values shown
in the table dropdowns; "all" disables a filter. --search matches title and
text ignoring case and accents.`,
	RunE: runComplaints,
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the tags x status heatmap",
	RunE:  runMatrix,
}

var generateCmd = &cobra.Command{
	Use:   "generate <complaint-id>",
	Short: "Generate a response for a complaint",
	Long: `Generates a reply for one complaint. Complaints that were never analyzed
are analyzed first. The result is appended to LEDGER_FILE.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Build the weekly digest",
	RunE:  runDigest,
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Print the competitor benchmark",
	RunE:  runBenchmark,
}

func init() {
	complaintsCmd.Flags().StringVar(&filterSearch, "search", "", "Search title and text")
	complaintsCmd.Flags().StringVar(&filterStatus, "status", filter.All, "Status filter")
	complaintsCmd.Flags().StringVar(&filterCategory, "category", filter.All, "Category filter")
	complaintsCmd.Flags().StringVar(&filterSentiment, "sentiment", "", "Sentiment filter")

	matrixCmd.Flags().StringVar(&matrixDimension, "dimension", "tag", "Row dimension: tag or category")
	matrixCmd.Flags().StringVar(&matrixPNG, "png", "", "Write the heatmap image to this file")

	digestCmd.Flags().BoolVar(&digestSend, "send", false, "Send the digest to Telegram")

	benchmarkCmd.Flags().Int64Var(&benchCompetitor, "competitor", 0, "Only best responses of this competitor")
	benchmarkCmd.Flags().IntVar(&benchLimit, "limit", 0, "Number of best responses")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func runOverview(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	o, err := app.Service.Overview(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, o)
	}
	writeOverview(out, o)
	return nil
}

func writeOverview(out io.Writer, o dashboard.Overview) {
	panel := func(name string, ok bool, errMsg string, empty bool) bool {
		switch {
		case !ok:
			fmt.Fprintf(out, "%s: %s\n", name, errMsg)
			return false
		case empty:
			fmt.Fprintf(out, "%s: %s\n", name, dashboard.NoData)
			return false
		}
		return true
	}

	if panel("Totais", o.Stats.OK(), o.Stats.Error, o.Stats.Empty) {
		fmt.Fprintf(out, "Total de reclamações: %d\n", o.Stats.Data.Total)
		fmt.Fprintf(out, "Taxa de resolução: %s\n", format.FormatPercent(o.ResolutionRate))
		fmt.Fprintf(out, "Urgência média: %.1f\n", o.Stats.Data.AvgUrgency)
		tw := newTabWriter(out)
		for _, kc := range o.StatusDistribution.Data {
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", kc.Key, kc.Count, aggregate.FormatShare(kc.Count, o.Stats.Data.Total))
		}
		_ = tw.Flush()
	}

	if panel("Tendência semanal", o.WeeklyTrends.OK(), o.WeeklyTrends.Error, o.WeeklyTrends.Empty) {
		s := o.WeeklyTrends.Data.Summary
		fmt.Fprintf(out, "Esta semana: %d (anterior: %d) %s %s\n", s.ThisWeek, s.LastWeek,
			format.TrendArrow(s.TrendDirection), format.FormatPercent(s.TrendPercentage))
	}

	if panel("Respostas", o.ResponseMetrics.OK(), o.ResponseMetrics.Error, o.ResponseMetrics.Empty) {
		m := o.ResponseMetrics.Data
		fmt.Fprintf(out, "Taxa de resposta: %s (%d de %d)\n", format.FormatPercent(m.ResponseRate), m.WithResponse, m.TotalComplaints)
	}

	if panel("Tags", o.Tags.OK(), o.Tags.Error, o.Tags.Empty) {
		fmt.Fprintln(out, "Tags mais frequentes:")
		tw := newTabWriter(out)
		for i, tc := range o.Tags.Data.AllTags {
			if i == 10 {
				break
			}
			fmt.Fprintf(tw, "  %s\t%d\n", format.Humanize(tc.Tag), tc.Count)
		}
		_ = tw.Flush()
	}

	if panel("Heatmap", o.Matrix.OK(), o.Matrix.Error, o.Matrix.Empty) {
		writeMatrixView(out, o.Matrix.Data)
	}

	if n := o.Failed(); n > 0 {
		fmt.Fprintf(out, "\n%d painéis falharam\n", n)
	}
}

func runComplaints(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	state := filter.New().
		WithSearch(filterSearch).
		WithStatus(filterStatus).
		WithCategory(filterCategory)
	if filterSentiment != "" && filterSentiment != filter.All {
		state = state.WithSentiment(&filterSentiment)
	}

	table, err := app.Service.ComplaintTable(ctx, state)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, table)
	}

	tw := newTabWriter(out)
	fmt.Fprintln(tw, "ID\tDATA\tSTATUS\tCATEGORIA\tSENTIMENTO\tURGÊNCIA\tTÍTULO")
	for _, r := range table.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.StatusLabel, r.Category, orDash(r.Sentiment), r.Urgency, format.Truncate(r.Title, 50))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "\n%d de %d reclamações\n", table.Shown, table.Total)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return format.NoCategory
	}
	return s
}

func runMatrix(cmd *cobra.Command, args []string) error {
	var (
		extract aggregate.DimensionExtractor
		title   string
	)
	switch matrixDimension {
	case "tag":
		extract, title = aggregate.TagDimension, "Tags x Status"
	case "category":
		extract, title = aggregate.CategoryDimension, "Categorias x Status"
	default:
		return fmt.Errorf("dimension must be tag or category, got %q", matrixDimension)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	m, err := app.Service.Matrix(ctx, extract)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if matrixPNG != "" {
		img, err := summary.RenderHeatmap(m, title, time.Now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(matrixPNG, img, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", matrixPNG, err)
		}
		fmt.Fprintf(out, "heatmap written to %s\n", matrixPNG)
		return nil
	}

	view := dashboard.NewMatrixView(m)
	if jsonOutput {
		return printJSON(out, view)
	}
	if m.Empty() {
		fmt.Fprintln(out, dashboard.NoData)
		return nil
	}
	writeMatrixView(out, view)
	return nil
}

func writeMatrixView(out io.Writer, v dashboard.MatrixView) {
	tw := newTabWriter(out)
	header := append([]string{""}, v.Columns...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, row := range v.Rows {
		cells := make([]string, 0, len(v.Columns)+1)
		cells = append(cells, format.Truncate(row, format.ChartLabel))
		for _, n := range v.Counts[i] {
			cells = append(cells, strconv.Itoa(n))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid complaint id %q", args[0])
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := app.Service.GenerateResponse(id).Execute(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, resp)
	}
	fmt.Fprintln(out, resp.Text())
	if resp.Coupon != nil && resp.Coupon.Code != "" {
		fmt.Fprintf(out, "\nCupom: %s\n", resp.Coupon.Code)
	}
	return nil
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	d, err := app.Digest(ctx)
	if err != nil {
		return err
	}
	if digestSend {
		if app.Telegram == nil {
			return fmt.Errorf("telegram is not configured: set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		}
		return app.Telegram.SendDigest(ctx, d.Text, d.Image)
	}
	fmt.Fprintln(cmd.OutOrStdout(), d.Text)
	return nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	b, err := app.Service.Benchmark(ctx, api.BestResponsesParams{
		CompetitorID: benchCompetitor,
		Limit:        benchLimit,
	}, nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, b)
	}

	if !b.Companies.OK() || b.Companies.Empty {
		msg := b.Companies.Error
		if msg == "" {
			msg = dashboard.NoData
		}
		fmt.Fprintf(out, "Empresas: %s\n", msg)
	} else {
		tw := newTabWriter(out)
		fmt.Fprintln(tw, "EMPRESA\tNOTA\tRESPOSTA\tREPUTAÇÃO")
		for _, c := range b.Companies.Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, optFloat(c.Score, "%.1f"), optFloat(c.ResponseRate, "%.1f%%"), orDash(c.Reputation))
		}
		_ = tw.Flush()
	}

	if b.Best.OK() && !b.Best.Empty {
		fmt.Fprintln(out, "\nMelhores respostas:")
		for _, r := range b.Best.Data {
			fmt.Fprintf(out, "• %s (%s): %s\n", r.Competitor, optFloat(r.Score, "%.1f"), r.Response)
		}
	}
	return nil
}

func optFloat(v *float64, layout string) string {
	if v == nil {
		return format.NoCategory
	}
	return fmt.Sprintf(layout, *v)
}
