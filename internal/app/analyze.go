package app

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"inkwell/pkg/domain"
)

// Analysis aggregates descriptive statistics over the whole dataset.
// It is read-only: nothing here mutates the label store.
type Analysis struct {
	TotalSamples    int                         `json:"total_samples"`
	StatusBreakdown map[domain.SampleStatus]int `json:"status_breakdown"`

	AvgTextLength    float64 `json:"avg_text_length"`
	TextLengthStddev float64 `json:"text_length_stddev"`

	CharacterFrequency map[string]int `json:"character_frequency"`
	WordFrequency      map[string]int `json:"word_frequency"`

	HasPredictedText int `json:"has_predicted_text"`
	HasProvidedText  int `json:"has_provided_text"`
	HasCorrectedText int `json:"has_corrected_text"`

	// Fraction of exact case-insensitive matches between predicted and
	// provided text, over samples carrying both.
	PredictionAccuracy float64 `json:"prediction_accuracy"`
	AccuracySamples    int     `json:"accuracy_samples"`

	TotalFileSize   int64   `json:"total_file_size"`
	AverageFileSize float64 `json:"average_file_size"`
}

// Analyze computes dataset statistics from a store snapshot.
func (a *App) Analyze() (Analysis, error) {
	samples, err := a.store.List()
	if err != nil {
		return Analysis{}, fmt.Errorf("load samples: %w", err)
	}

	analysis := Analysis{
		TotalSamples:       len(samples),
		StatusBreakdown:    make(map[domain.SampleStatus]int),
		CharacterFrequency: make(map[string]int),
		WordFrequency:      make(map[string]int),
	}

	var textLengths []int
	matches := 0

	for _, sample := range samples {
		analysis.StatusBreakdown[sample.Status]++

		for _, text := range []string{sample.PredictedText, sample.ProvidedText, sample.CorrectedText} {
			if text == "" {
				continue
			}
			textLengths = append(textLengths, len([]rune(text)))
			countCharacters(analysis.CharacterFrequency, text)
			countWords(analysis.WordFrequency, text)
		}

		if sample.PredictedText != "" {
			analysis.HasPredictedText++
		}
		if sample.ProvidedText != "" {
			analysis.HasProvidedText++
		}
		if sample.CorrectedText != "" {
			analysis.HasCorrectedText++
		}

		predicted := strings.ToLower(strings.TrimSpace(sample.PredictedText))
		provided := strings.ToLower(strings.TrimSpace(sample.ProvidedText))
		if predicted != "" && provided != "" {
			analysis.AccuracySamples++
			if predicted == provided {
				matches++
			}
		}

		analysis.TotalFileSize += sample.FileSize
	}

	if len(textLengths) > 0 {
		analysis.AvgTextLength, analysis.TextLengthStddev = meanStddev(textLengths)
	}
	if analysis.AccuracySamples > 0 {
		analysis.PredictionAccuracy = float64(matches) / float64(analysis.AccuracySamples)
	}
	if len(samples) > 0 {
		analysis.AverageFileSize = float64(analysis.TotalFileSize) / float64(len(samples))
	}
	return analysis, nil
}

// Readiness is the go/no-go training signal.
type Readiness struct {
	Ready              bool     `json:"ready"`
	TotalSamples       int      `json:"total_samples"`
	ApprovedSamples    int      `json:"approved_samples"`
	MinimumRequired    int      `json:"minimum_required"`
	Recommendations    []string `json:"recommendations"`
	QualityIssues      []string `json:"quality_issues"`
	TrainingDataExists bool     `json:"training_data_exists"`
}

// Readiness evaluates the training readiness policy: enough approved
// samples, enough of them corrected, and enough distinct texts.
func (a *App) Readiness() (Readiness, error) {
	samples, err := a.store.List()
	if err != nil {
		return Readiness{}, fmt.Errorf("load samples: %w", err)
	}

	var approved []domain.Sample
	for _, sample := range samples {
		if sample.Status == domain.StatusApproved {
			approved = append(approved, sample)
		}
	}

	report := Readiness{
		TotalSamples:       len(samples),
		ApprovedSamples:    len(approved),
		MinimumRequired:    a.minApproved,
		TrainingDataExists: a.trainingDataExists(),
	}

	if len(approved) < a.minApproved {
		report.Recommendations = append(report.Recommendations, fmt.Sprintf(
			"Need at least %d approved samples. Currently have %d.", a.minApproved, len(approved)))
	}

	corrected := 0
	unique := make(map[string]bool)
	for _, sample := range approved {
		text := strings.TrimSpace(sample.CorrectedText)
		if text == "" {
			continue
		}
		corrected++
		unique[strings.ToLower(text)] = true
	}

	if float64(corrected) < float64(len(approved))*0.8 {
		report.QualityIssues = append(report.QualityIssues,
			"Less than 80% of approved samples have corrected text")
	}
	if float64(len(unique)) < float64(len(approved))*0.7 {
		report.QualityIssues = append(report.QualityIssues,
			"Low text diversity - many duplicate texts detected")
	}

	report.Ready = len(approved) >= a.minApproved && len(report.QualityIssues) == 0
	return report, nil
}

func (a *App) trainingDataExists() bool {
	if a.trainingDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(a.trainingDir, "train.txt"))
	return err == nil
}

// Stats is the lightweight summary served on /stats and /healthz.
type Stats struct {
	TotalUploads    int            `json:"total_uploads"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	TotalFileSize   int64          `json:"total_file_size"`
	AverageFileSize float64        `json:"average_file_size"`
	OCREnabled      bool           `json:"ocr_enabled"`
}

// Stats summarizes the dataset without the heavier text aggregation.
func (a *App) Stats() (Stats, error) {
	samples, err := a.store.List()
	if err != nil {
		return Stats{}, fmt.Errorf("load samples: %w", err)
	}
	stats := Stats{
		TotalUploads:    len(samples),
		StatusBreakdown: make(map[string]int),
		OCREnabled:      a.engine != nil,
	}
	for _, sample := range samples {
		stats.StatusBreakdown[string(sample.Status)]++
		stats.TotalFileSize += sample.FileSize
	}
	if len(samples) > 0 {
		stats.AverageFileSize = float64(stats.TotalFileSize) / float64(len(samples))
	}
	return stats, nil
}

// WriteReport renders a monitoring report and saves it under the reports
// directory. It returns the report content and the saved path.
func (a *App) WriteReport() (string, string, error) {
	analysis, err := a.Analyze()
	if err != nil {
		return "", "", err
	}
	readiness, err := a.Readiness()
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	now := a.now().UTC()
	fmt.Fprintf(&b, "# Dataset Monitoring Report\nGenerated: %s\n\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "## Overview\n")
	fmt.Fprintf(&b, "- Total samples: %d\n", analysis.TotalSamples)
	fmt.Fprintf(&b, "- Average text length: %.1f characters\n", analysis.AvgTextLength)
	fmt.Fprintf(&b, "- Total dataset size: %.1f MB\n\n", float64(analysis.TotalFileSize)/(1024*1024))

	fmt.Fprintf(&b, "## Status Breakdown\n")
	for _, status := range []domain.SampleStatus{domain.StatusPending, domain.StatusApproved, domain.StatusRejected} {
		count := analysis.StatusBreakdown[status]
		if analysis.TotalSamples > 0 {
			fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", status, count, float64(count)/float64(analysis.TotalSamples)*100)
		} else {
			fmt.Fprintf(&b, "- %s: %d\n", status, count)
		}
	}

	fmt.Fprintf(&b, "\n## Quality\n")
	fmt.Fprintf(&b, "- Samples with OCR predictions: %d\n", analysis.HasPredictedText)
	fmt.Fprintf(&b, "- Samples with user-provided text: %d\n", analysis.HasProvidedText)
	fmt.Fprintf(&b, "- Samples with corrected text: %d\n", analysis.HasCorrectedText)
	if analysis.AccuracySamples > 0 {
		fmt.Fprintf(&b, "- OCR exact-match accuracy: %.1f%% over %d samples\n",
			analysis.PredictionAccuracy*100, analysis.AccuracySamples)
	}

	fmt.Fprintf(&b, "\n## Training Readiness\n")
	fmt.Fprintf(&b, "- Ready: %t\n", readiness.Ready)
	fmt.Fprintf(&b, "- Approved samples: %d / %d minimum\n", readiness.ApprovedSamples, readiness.MinimumRequired)
	fmt.Fprintf(&b, "- Training data prepared: %t\n", readiness.TrainingDataExists)
	if len(readiness.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n### Recommendations\n")
		for _, rec := range readiness.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	if len(readiness.QualityIssues) > 0 {
		fmt.Fprintf(&b, "\n### Quality Issues\n")
		for _, issue := range readiness.QualityIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	if len(analysis.WordFrequency) > 0 {
		fmt.Fprintf(&b, "\n### Most Common Words\n")
		for _, entry := range topN(analysis.WordFrequency, 10) {
			fmt.Fprintf(&b, "- %q: %d times\n", entry.key, entry.count)
		}
	}

	content := b.String()
	if a.reportsDir == "" {
		return content, "", nil
	}
	if err := os.MkdirAll(a.reportsDir, 0o755); err != nil {
		return content, "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(a.reportsDir, fmt.Sprintf("monitoring_report_%s.md", now.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return content, "", fmt.Errorf("write report: %w", err)
	}
	return content, path, nil
}

func countCharacters(freq map[string]int, text string) {
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			freq[string(r)]++
		}
	}
}

func countWords(freq map[string]int, text string) {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if isAlnum(word) {
			freq[word]++
		}
	}
}

func isAlnum(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func meanStddev(values []int) (float64, float64) {
	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := float64(sum) / float64(len(values))
	variance := 0.0
	for _, v := range values {
		diff := float64(v) - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

type freqEntry struct {
	key   string
	count int
}

func topN(freq map[string]int, n int) []freqEntry {
	entries := make([]freqEntry, 0, len(freq))
	for key, count := range freq {
		entries = append(entries, freqEntry{key: key, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].key < entries[j].key
		}
		return entries[i].count > entries[j].count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
