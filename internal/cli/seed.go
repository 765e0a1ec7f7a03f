package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/infra/memory"
	"triviacast-service/internal/infra/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedQuestionsCmd imports a question bank into Postgres.
func NewSeedQuestionsCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Import a JSON question bank (OpenTDB result format) into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			questions, err := readQuestions(cmd.Context(), file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			inserted, err := postgres.SeedQuestions(cmd.Context(), db, questions)
			if err != nil {
				return err
			}
			log.Info("questions seeded", zap.Int("read", len(questions)), zap.Int64("inserted", inserted))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with an array of questions (defaults to the bundled bank)")
	return cmd
}

func readQuestions(ctx context.Context, path string) ([]domain.Question, error) {
	if path == "" {
		bank, err := memory.NewStaticQuestionLoader()
		if err != nil {
			return nil, err
		}
		return bank.LoadPool(ctx, domain.QuestionQuery{})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// accept a bare array or a saved OpenTDB response
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		var resp struct {
			Results []domain.Question `json:"results"`
		}
		if err2 := json.Unmarshal(data, &resp); err2 != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		questions = resp.Results
	}
	return questions, nil
}
