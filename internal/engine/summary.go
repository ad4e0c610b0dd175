package engine

import "github.com/pankaj-dahiya-devops/infraaudit/internal/models"

// Summarize counts results per status. Statuses are normalised before they
// are counted, so localized or lower-case spellings land in the right bucket.
// A status outside the canonical vocabulary counts towards Total only.
func Summarize(results []models.CheckResult) models.Summary {
	s := models.Summary{Total: len(results)}
	for _, r := range results {
		switch models.NormalizeStatus(string(r.Status)) {
		case models.StatusPass:
			s.Pass++
		case models.StatusFail:
			s.Fail++
		case models.StatusWarn:
			s.Warn++
		case models.StatusError:
			s.Error++
		}
	}
	return s
}
