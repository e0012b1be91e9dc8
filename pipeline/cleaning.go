package pipeline

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(Observation) (Observation, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Rule     string    `json:"rule"`
	Severity string    `json:"severity"` // low, high
	Message  string    `json:"message"`
	Month    time.Time `json:"month"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器. Rules run per observation; the series checks
// (gaps and outliers) run afterwards and only report.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	// OutlierThreshold is the z-score above which a month is reported.
	OutlierThreshold float64

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger:           logger,
		OutlierThreshold: 3.0, // 3个标准差
		stats:            CleaningStats{Issues: make(map[string]int64)},
	}

	// 添加默认规则
	cleaner.AddRule(NewProductionValidationRule())
	cleaner.AddRule(NewDuplicateMonthRule())
	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean 清洗数据: returns the observations that passed every rule, sorted
// by month, and every issue found.
func (dc *DataCleaner) Clean(obs []Observation) ([]Observation, []QualityIssue) {
	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	var cleaned []Observation
	var issues []QualityIssue

	for _, o := range obs {
		dc.stats.TotalProcessed++

		rejected := false
		for _, rule := range dc.rules {
			next, err := rule.Apply(o)
			if err != nil {
				issues = append(issues, QualityIssue{
					Rule:     rule.Name(),
					Severity: "high",
					Message:  err.Error(),
					Month:    o.Month,
				})
				dc.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
			o = next
		}

		if rejected {
			dc.stats.Rejected++
			continue
		}
		dc.stats.Passed++
		cleaned = append(cleaned, o)
	}

	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Month.Before(cleaned[j].Month) })

	for _, issue := range append(findGaps(cleaned), findOutliers(cleaned, dc.OutlierThreshold)...) {
		dc.stats.Issues[issue.Rule]++
		issues = append(issues, issue)
	}

	dc.stats.LastClean = time.Now()
	if len(issues) > 0 {
		dc.logger.Info("series cleaned with issues",
			zap.Int("kept", len(cleaned)),
			zap.Int("issues", len(issues)))
	}
	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// ============ 清洗规则实现 ============

// ProductionValidationRule 产量验证规则
type ProductionValidationRule struct {
	MinProduction float64
	MaxProduction float64
}

func NewProductionValidationRule() *ProductionValidationRule {
	return &ProductionValidationRule{
		MinProduction: 0,
		MaxProduction: 1e6,
	}
}

func (r *ProductionValidationRule) Name() string {
	return "production_validation"
}

func (r *ProductionValidationRule) Apply(o Observation) (Observation, error) {
	if math.IsNaN(o.Production) || math.IsInf(o.Production, 0) {
		return o, fmt.Errorf("production is not finite")
	}
	if o.Production < r.MinProduction || o.Production > r.MaxProduction {
		return o, fmt.Errorf("production %.2f out of range [%.2f, %.2f]", o.Production, r.MinProduction, r.MaxProduction)
	}
	return o, nil
}

// DuplicateMonthRule 重复检测规则. The first observation of a month wins.
type DuplicateMonthRule struct {
	seen map[time.Time]struct{}
	mu   sync.Mutex
}

func NewDuplicateMonthRule() *DuplicateMonthRule {
	return &DuplicateMonthRule{seen: make(map[time.Time]struct{})}
}

func (r *DuplicateMonthRule) Name() string {
	return "duplicate_month"
}

func (r *DuplicateMonthRule) Apply(o Observation) (Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seen[o.Month]; exists {
		return o, fmt.Errorf("duplicate month %s", o.Month.Format("2006-01"))
	}
	r.seen[o.Month] = struct{}{}
	return o, nil
}

// findGaps reports months missing between consecutive observations.
func findGaps(obs []Observation) []QualityIssue {
	var issues []QualityIssue
	for i := 1; i < len(obs); i++ {
		want := obs[i-1].Month.AddDate(0, 1, 0)
		if !obs[i].Month.Equal(want) {
			issues = append(issues, QualityIssue{
				Rule:     "month_gap",
				Severity: "low",
				Message:  fmt.Sprintf("expected %s, found %s", want.Format("2006-01"), obs[i].Month.Format("2006-01")),
				Month:    obs[i].Month,
			})
		}
	}
	return issues
}

// findOutliers 异常值检测 by z-score over the whole series.
func findOutliers(obs []Observation, threshold float64) []QualityIssue {
	if len(obs) < 3 || threshold <= 0 {
		return nil
	}

	var sum float64
	for _, o := range obs {
		sum += o.Production
	}
	mean := sum / float64(len(obs))

	var sq float64
	for _, o := range obs {
		sq += (o.Production - mean) * (o.Production - mean)
	}
	std := math.Sqrt(sq / float64(len(obs)))
	if std == 0 {
		return nil
	}

	var issues []QualityIssue
	for _, o := range obs {
		if z := math.Abs(o.Production-mean) / std; z > threshold {
			issues = append(issues, QualityIssue{
				Rule:     "outlier_detection",
				Severity: "low",
				Message:  fmt.Sprintf("production %.2f is %.1f standard deviations from the mean", o.Production, z),
				Month:    o.Month,
			})
		}
	}
	return issues
}
