package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/config"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/exporter"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/importer"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight/llm"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/util"
)

var (
	reportRole  string
	reportStart string
	reportEnd   string
	reportPlant string
	reportAsk   string
	reportXLSX  string
)

var reportCmd = &cobra.Command{
	Use:   "report <workbook.xlsx>",
	Short: "Load a workbook into a scratch warehouse and print KPIs",
	Long: `Load a workbook into a temporary warehouse, then print the load summary,
the KPIs of every role (or only --role) and the plant EBITDA comparison.
With --ask the question is also answered by the insight engine.

Example:
  starkpi report data.xlsx
  starkpi report data.xlsx --role "Energy Manager" --plant Lumshnong
  starkpi report data.xlsx --ask "Why did EBITDA drop in the recent month?"
  starkpi report data.xlsx --xlsx kpis.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRole, "role", "",
		"only print this role (CXO, Plant Head, Energy Manager, Sales)")
	reportCmd.Flags().StringVar(&reportStart, "start", "",
		"range start YYYY-MM-DD (default: kpi.default_start)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "",
		"range end YYYY-MM-DD (default: kpi.default_end)")
	reportCmd.Flags().StringVar(&reportPlant, "plant", kpi.PlantAll,
		"plant name or 'all'")
	reportCmd.Flags().StringVar(&reportAsk, "ask", "",
		"question for the insight engine")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "",
		"also write the KPIs to this Excel workbook")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tmpDir, err := os.MkdirTemp("", "starkpi-report-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	st, err := store.New(filepath.Join(tmpDir, "report.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := importer.NewCoordinator(st).Run(ctx, importer.ImportOptions{FilePath: args[0]})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderLoad(out, res)

	q := kpi.Query{Start: reportStart, End: reportEnd, Plant: reportPlant}
	if err := renderKPIs(ctx, out, cfg, st, q, reportRoles(reportRole)); err != nil {
		return err
	}

	if reportXLSX != "" {
		if err := writeWorkbook(ctx, reportXLSX, cfg, st, q, reportRole); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nwrote %s\n", reportXLSX)
	}

	if reportAsk == "" {
		return nil
	}
	return renderInsight(ctx, out, cfg, st, q, reportAsk)
}

func writeWorkbook(ctx context.Context, path string, cfg *config.AppConfig, st *store.Store, q kpi.Query, role string) error {
	agg := kpi.NewAggregator(st,
		kpi.WithPowerTariff(cfg.KPI.PowerTariffRsKWh),
		kpi.WithDefaultRange(cfg.KPI.DefaultStart, cfg.KPI.DefaultEnd),
	)
	f, err := exporter.NewExporter(agg).Export(ctx, exporter.ExportOptions{
		Start: q.Start,
		End:   q.End,
		Plant: q.Plant,
		Roles: reportRoles(role),
	}, func(e exporter.ProgressEvent) {
		logging.Debug().Int("percent", e.Percent()).Str("stage", e.Stage).Str("sheet", e.Sheet).Msg("export progress")
	})
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// reportRoles --role 为空时输出全部角色
func reportRoles(name string) []kpi.Role {
	if strings.TrimSpace(name) == "" {
		return kpi.Roles()
	}
	return []kpi.Role{kpi.NormalizeRole(name)}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderLoad(w io.Writer, res *importer.UploadResult) {
	fmt.Fprintf(w, "%s\n\n", res.Message)

	tables := make([]string, 0, len(res.Load.Tables))
	for name := range res.Load.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	table := newTable(w, "Table", "Rows")
	for _, name := range tables {
		table.Append([]string{name, fmt.Sprintf("%d", res.Load.Tables[name])})
	}
	table.Render()

	for _, warning := range res.Mapping.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	fmt.Fprintln(w)
}

func renderKPIs(ctx context.Context, w io.Writer, cfg *config.AppConfig, st *store.Store, q kpi.Query, roles []kpi.Role) error {
	agg := kpi.NewAggregator(st,
		kpi.WithPowerTariff(cfg.KPI.PowerTariffRsKWh),
		kpi.WithDefaultRange(cfg.KPI.DefaultStart, cfg.KPI.DefaultEnd),
	)

	var comparisons []kpi.PlantComparison
	for _, role := range roles {
		q.Role = string(role)
		res, err := agg.Compute(ctx, q)
		if err != nil {
			if errors.Is(err, kpi.ErrInvalidRange) {
				return fmt.Errorf("%w (use YYYY-MM-DD with start <= end)", err)
			}
			return err
		}
		comparisons = res.Comparisons

		fmt.Fprintf(w, "%s\n", role)
		table := newTable(w, "Metric", "Value")
		for _, name := range kpi.MetricNames(role) {
			table.Append([]string{name, util.FormatMetric(name, res.KPIs[name])})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Plant EBITDA comparison")
	table := newTable(w, "Plant", "EBITDA/t", "Weighted EBITDA")
	for _, c := range comparisons {
		table.Append([]string{
			c.PlantName,
			"₹" + util.FormatIndian(c.EbitdaTon, 2),
			"₹" + util.FormatIndian(c.WeightedEbitda, 2),
		})
	}
	table.Render()
	return nil
}

func renderInsight(ctx context.Context, w io.Writer, cfg *config.AppConfig, st *store.Store, q kpi.Query, question string) error {
	gen, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLMTimeout(),
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil && !errors.Is(err, llm.ErrNotConfigured) {
		return err
	}

	svc := insight.NewService(st, gen, insight.WithDefaultFilters(insight.Filters{
		Start: cfg.KPI.DefaultStart,
		End:   cfg.KPI.DefaultEnd,
		Plant: kpi.PlantAll,
	}))
	res := svc.Answer(ctx, insight.Request{
		Question:       question,
		ContextFilters: insight.Filters{Start: q.Start, End: q.End, Plant: q.Plant},
	})

	fmt.Fprintf(w, "\nQ: %s\n", question)
	if res.Status != insight.StatusSuccess {
		fmt.Fprintf(w, "%s: %s\n", res.Message, res.Error)
		return nil
	}
	fmt.Fprintf(w, "[%s] %s\n", res.QueryType, res.Summary)
	for _, c := range res.Causes {
		fmt.Fprintf(w, "  cause:  %s\n", c)
	}
	for _, a := range res.RecommendedActions {
		fmt.Fprintf(w, "  action: %s\n", a)
	}
	return nil
}
