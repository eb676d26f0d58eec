// 本文件用于知识库评估命令入口 将命中率门禁和归档统计集中到一个 CLI 便于回归复用

// 文件职责：进程内加载目录与匹配器 按样本回放问题并对照质量门禁
// 关键路径：读取样本 -> 逐条匹配 -> 汇总比例 -> 可选导出 CSV -> 门禁判定
// 边界与容错：样本或目录异常时直接返回错误 不输出半成品报告

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"carlos-assist/internal/kb"
	"carlos-assist/internal/match"
	"carlos-assist/internal/store"
)

// errGateFailed 表示评估完成但未达到门禁阈值
var errGateFailed = errors.New("quality gate failed")

type hitrateSample struct {
	Question  string   `json:"question"`
	ExpectAny []string `json:"expectAny"`
}

type sampleResult struct {
	Question  string
	Expected  []string
	ArticleID string
	Pass      string
	Hits      int
	Hit       bool
}

type hitrateSummary struct {
	Total         int
	Hit           int
	Fallback      int
	HitRatio      float64
	FallbackRatio float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kb-eval failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kb-eval",
		Short:         "Evaluate knowledge catalog matching quality",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.AddCommand(newHitrateCmd())
	root.AddCommand(newArchiveCmd())
	return root
}

func newHitrateCmd() *cobra.Command {
	var (
		samplesPath string
		catalogPath string
		reportPath  string
	)
	cmd := &cobra.Command{
		Use:   "hitrate",
		Short: "Replay sample questions and enforce the match quality gates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHitrate(cmd.OutOrStdout(), samplesPath, catalogPath, reportPath)
		},
	}
	cmd.Flags().StringVar(&samplesPath, "samples", filepath.FromSlash("../../docs/kb/hitrate_samples.json"), "samples json path")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog yaml path, embedded catalog when empty")
	cmd.Flags().StringVar(&reportPath, "report", "", "optional csv report path")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Summarise recorded match events and tickets from the sqlite archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), cmd.OutOrStdout(), dataDir)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "archive data directory")
	return cmd
}

func runHitrate(out io.Writer, samplesPath, catalogPath, reportPath string) error {
	samples, err := loadSamples(samplesPath)
	if err != nil {
		return err
	}
	catalog, err := kb.LoadFile(catalogPath)
	if err != nil {
		return err
	}
	results := evaluate(match.NewMatcher(catalog), samples)
	for i, result := range results {
		fmt.Fprintf(out, "[%02d] %s => %s\n", i+1, result.Question, hitLabel(result.Hit))
		if result.ArticleID != "" {
			fmt.Fprintf(out, "     matched: %s (%s pass, %d hits)\n", result.ArticleID, result.Pass, result.Hits)
		}
	}
	summary := summarize(results)
	gates := kb.DefaultQualityGates()
	fmt.Fprintf(out, "\nHitrate : %d/%d = %.2f%% (gate >= %.2f%%)\n", summary.Hit, summary.Total, summary.HitRatio*100, gates.MatchHitRatioMin*100)
	fmt.Fprintf(out, "Fallback: %d/%d = %.2f%% (gate <= %.2f%%)\n", summary.Fallback, summary.Total, summary.FallbackRatio*100, gates.FallbackRatioMax*100)

	if reportPath != "" {
		if err := writeReport(reportPath, results); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report  : %s\n", reportPath)
	}
	return checkGates(summary, gates)
}

func loadSamples(path string) ([]hitrateSample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples failed: %w", err)
	}
	var samples []hitrateSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("parse samples failed: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("samples is empty")
	}
	for i, sample := range samples {
		if strings.TrimSpace(sample.Question) == "" {
			return nil, fmt.Errorf("sample %d has no question", i+1)
		}
	}
	return samples, nil
}

// evaluate 期望列表为空的样本表示该问题应当得到澄清回复
func evaluate(matcher *match.Matcher, samples []hitrateSample) []sampleResult {
	results := make([]sampleResult, 0, len(samples))
	for _, sample := range samples {
		got := matcher.Match(sample.Question)
		result := sampleResult{
			Question: sample.Question,
			Expected: sample.ExpectAny,
			Pass:     got.Pass,
			Hits:     got.Hits,
		}
		if got.Matched() {
			result.ArticleID = got.Article.ID
		}
		if len(sample.ExpectAny) == 0 {
			result.Hit = !got.Matched()
		} else {
			for _, id := range sample.ExpectAny {
				if strings.TrimSpace(id) == result.ArticleID && result.ArticleID != "" {
					result.Hit = true
					break
				}
			}
		}
		results = append(results, result)
	}
	return results
}

func summarize(results []sampleResult) hitrateSummary {
	summary := hitrateSummary{Total: len(results)}
	for _, result := range results {
		if result.Hit {
			summary.Hit++
		}
		if result.Pass == match.PassContent {
			summary.Fallback++
		}
	}
	if summary.Total > 0 {
		summary.HitRatio = float64(summary.Hit) / float64(summary.Total)
		summary.FallbackRatio = float64(summary.Fallback) / float64(summary.Total)
	}
	return summary
}

func checkGates(summary hitrateSummary, gates kb.QualityGates) error {
	var failures []string
	if summary.HitRatio < gates.MatchHitRatioMin {
		failures = append(failures, fmt.Sprintf("hit ratio %.2f%% below %.2f%%", summary.HitRatio*100, gates.MatchHitRatioMin*100))
	}
	if summary.FallbackRatio > gates.FallbackRatioMax {
		failures = append(failures, fmt.Sprintf("fallback ratio %.2f%% above %.2f%%", summary.FallbackRatio*100, gates.FallbackRatioMax*100))
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", errGateFailed, strings.Join(failures, "; "))
}

func writeReport(path string, results []sampleResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report failed: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"question", "expected", "matched", "pass", "hits", "hit"}); err != nil {
		return err
	}
	for _, result := range results {
		row := []string{
			result.Question,
			strings.Join(result.Expected, "|"),
			result.ArticleID,
			result.Pass,
			strconv.Itoa(result.Hits),
			strconv.FormatBool(result.Hit),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write report failed: %w", err)
	}
	return nil
}

func runArchive(ctx context.Context, out io.Writer, dataDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	archive, err := store.NewStore(dataDir)
	if err != nil {
		return err
	}
	defer archive.Close()

	stats, err := archive.MatchStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Archive : %s\n", archive.DBPath())
	fmt.Fprintf(out, "Replies : %d\n", stats.Total)
	fmt.Fprintf(out, "Hitrate : %.2f%%\n", stats.HitRatio*100)
	passes := make([]string, 0, len(stats.ByPass))
	for pass := range stats.ByPass {
		passes = append(passes, pass)
	}
	sort.Strings(passes)
	for _, pass := range passes {
		fmt.Fprintf(out, "  %-8s %d\n", pass, stats.ByPass[pass])
	}
	for _, item := range stats.TopArticles {
		fmt.Fprintf(out, "Top     : %s x%d\n", item.ArticleID, item.Count)
	}
	fmt.Fprintf(out, "Tickets : %d\n", stats.Tickets)
	return nil
}

func hitLabel(v bool) string {
	if v {
		return "hit"
	}
	return "miss"
}
