package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/cvsearch/internal/logger"
)

type searchOptions struct {
	limit       int
	page        int
	searchType  string
	sortBy      string
	sortOrder   string
	skills      []string
	skillsLogic string
	expExact    int
	expMin      int
	expMax      int
	jobTitles   []string
	education   []string
	from        string
	to          string
	custom      map[string]string
	json        bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a single search and print the results",
		Long: `Run one search against the configured store.

With a query, searches try vector similarity first and fall back to
text matching when embeddings are unavailable. Without a query, at least
one filter is required and records are matched on filters alone.`,
		Example: `  cvsearch search "backend engineer" --skills go,kubernetes --exp-min 3
  cvsearch search --skills react --sort-by uploadDate --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := opts.params(cmd, args)
			if err != nil {
				return err
			}
			req, err := request.New(params)
			if err != nil {
				return err
			}

			cfg, _, logger, err := g.load(logpkg.WithStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.search.Search(logpkg.ContextWithLogger(cmd.Context(), logger), req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if opts.json {
				return outputSearchJSON(cmd.OutOrStdout(), &resp)
			}
			outputSearchTable(cmd.OutOrStdout(), &resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.limit, "limit", "n", 0, "results per page (0 = default)")
	f.IntVar(&opts.page, "page", 1, "1-based page number")
	f.StringVarP(&opts.searchType, "type", "t", "auto", "search type: auto, vector or text")
	f.StringVar(&opts.sortBy, "sort-by", "", "relevance, experience, uploadDate or metadata.<key>")
	f.StringVar(&opts.sortOrder, "order", "", "asc or desc")
	f.StringSliceVar(&opts.skills, "skills", nil, "required skills (comma separated)")
	f.StringVar(&opts.skillsLogic, "skills-logic", "OR", "combine skills with OR or AND")
	f.IntVar(&opts.expExact, "exp", 0, "exact years of experience")
	f.IntVar(&opts.expMin, "exp-min", 0, "minimum years of experience")
	f.IntVar(&opts.expMax, "exp-max", 0, "maximum years of experience")
	f.StringSliceVar(&opts.jobTitles, "job-titles", nil, "job titles (comma separated)")
	f.StringSliceVar(&opts.education, "education", nil, "education entries (comma separated)")
	f.StringVar(&opts.from, "from", "", "earliest upload date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&opts.to, "to", "", "latest upload date, inclusive (YYYY-MM-DD or RFC3339)")
	f.StringToStringVar(&opts.custom, "meta", nil, "custom metadata equality, e.g. --meta city=berlin")
	f.BoolVar(&opts.json, "json", false, "output results as JSON")
	return cmd
}

// params converts flags into request parameters. Only flags the user set
// become filters, so --exp-min 0 is different from no bound.
func (o *searchOptions) params(cmd *cobra.Command, args []string) (request.Params, error) {
	st, err := mode.ParseSearchType(o.searchType)
	if err != nil {
		return request.Params{}, err
	}

	spec := filter.Spec{
		Skills:      o.skills,
		SkillsLogic: filter.Logic(strings.ToUpper(o.skillsLogic)),
		JobTitles:   o.jobTitles,
		Education:   o.education,
	}
	flags := cmd.Flags()
	if flags.Changed("exp") {
		spec.Experience.Exact = &o.expExact
	}
	if flags.Changed("exp-min") {
		spec.Experience.Min = &o.expMin
	}
	if flags.Changed("exp-max") {
		spec.Experience.Max = &o.expMax
	}
	if spec.UploadDate.From, err = cliDate(o.from, false); err != nil {
		return request.Params{}, fmt.Errorf("--from: %w", err)
	}
	if spec.UploadDate.To, err = cliDate(o.to, true); err != nil {
		return request.Params{}, fmt.Errorf("--to: %w", err)
	}
	if len(o.custom) > 0 {
		spec.Custom = make(map[string]any, len(o.custom))
		for k, v := range o.custom {
			spec.Custom[k] = v
		}
	}

	p := request.Params{
		Limit:      o.limit,
		Page:       o.page,
		Filters:    spec,
		SortBy:     o.sortBy,
		SortOrder:  o.sortOrder,
		SearchType: st,
	}
	if len(args) == 1 {
		p.Query = args[0]
	}
	return p, nil
}

// cliDate accepts a calendar date or RFC3339. A bare date used as an upper
// bound covers the whole day.
func cliDate(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}

type searchOutput struct {
	Count        int         `json:"count"`
	Total        int         `json:"total"`
	Page         int         `json:"page"`
	TotalPages   int         `json:"totalPages"`
	SearchMethod string      `json:"searchMethod"`
	Results      []hitOutput `json:"results"`
}

type hitOutput struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score"`
	UploadDate time.Time      `json:"uploadDate"`
	Skills     []string       `json:"skills"`
	Experience int            `json:"experience"`
	JobTitles  []string       `json:"jobTitles,omitempty"`
	Education  []string       `json:"education,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

func outputSearchJSON(w io.Writer, resp *result.Response) error {
	out := searchOutput{
		Count:        resp.Count(),
		Total:        resp.Total(),
		Page:         resp.Page(),
		TotalPages:   resp.TotalPages(),
		SearchMethod: resp.Method().String(),
		Results:      make([]hitOutput, 0, resp.Count()),
	}
	for _, r := range resp.Records() {
		m := r.Metadata()
		out.Results = append(out.Results, hitOutput{
			ID:         r.ID(),
			Score:      r.Score(),
			UploadDate: r.UploadDate(),
			Skills:     m.Skills,
			Experience: m.Experience,
			JobTitles:  m.JobTitles,
			Education:  m.Education,
			Custom:     m.Custom,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputSearchTable(w io.Writer, resp *result.Response) {
	if resp.Count() == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tSCORE\tEXP\tUPLOADED\tSKILLS")
	offset := (resp.Page() - 1) * resp.Limit()
	for i, r := range resp.Records() {
		m := r.Metadata()
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%d\t%s\t%s\n",
			offset+i+1, r.ID(), r.Score(), m.Experience,
			r.UploadDate().Format(time.DateOnly), strings.Join(m.Skills, ", "))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d of %d results (page %d/%d, %s search)\n",
		resp.Count(), resp.Total(), resp.Page(), resp.TotalPages(), resp.Method())
}
