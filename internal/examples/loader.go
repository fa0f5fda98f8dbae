package examples

import (
	"context"
	"fmt"
	"sort"

	"github.com/Veraticus/spice-insights/internal/model"
)

// ProgressFunc is called after each dialect collection is refreshed.
type ProgressFunc func(dialect string, count int)

// LoadProjects refreshes every dialect named in the projects' example sets. Examples
// for one dialect from all projects are merged, so each collection is refreshed once.
// It returns the number of examples loaded per dialect.
func (s *Store) LoadProjects(ctx context.Context, projects []*model.ProjectConfig, progress ProgressFunc) (map[string]int, error) {
	byDialect := make(map[string][]model.SQLExample)
	for _, p := range projects {
		for dialect, exs := range p.Examples {
			for _, ex := range exs {
				ex.Dialect = dialect
				byDialect[dialect] = append(byDialect[dialect], ex)
			}
		}
	}

	dialects := make([]string, 0, len(byDialect))
	for d := range byDialect {
		dialects = append(dialects, d)
	}
	sort.Strings(dialects)

	counts := make(map[string]int, len(dialects))
	for _, d := range dialects {
		if err := s.Refresh(ctx, d, byDialect[d]); err != nil {
			return counts, fmt.Errorf("failed to refresh %s: %w", CollectionName(d), err)
		}
		counts[d] = len(byDialect[d])
		if progress != nil {
			progress(d, counts[d])
		}
	}
	return counts, nil
}
