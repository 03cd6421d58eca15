// Command quizctl performs administrative tasks against the ClassQuiz
// database: creating teacher accounts, resetting passwords, seeding demo data and ranking quizzes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/database"
	"github.com/classquiz/classquiz-backend/internal/logger"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds the connections and services shared by every subcommand.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client

	teachers  *repository.TeacherRepository
	auth      *service.AuthService
	groups    *service.GroupService
	students  *service.StudentService
	quizzes   *service.QuizService
	questions *service.QuestionService
	rankings  *service.RankingService
}

func connect(ctx context.Context) (*app, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	teacherRepo := repository.NewTeacherRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)

	a := &app{cfg: cfg, log: log, pool: pool, rdb: rdb, teachers: teacherRepo}
	a.auth = service.NewAuthService(cfg, rdb, teacherRepo, log)
	a.groups = service.NewGroupService(repository.NewGroupRepository(pool))
	a.students = service.NewStudentService(studentRepo, a.groups, log)
	a.quizzes = service.NewQuizService(quizRepo, questionRepo, attemptRepo, a.groups, cache.NewQuizCache(rdb, cfg.PaperCacheTTL), log)
	a.questions = service.NewQuestionService(questionRepo, a.quizzes)
	attempts := service.NewAttemptService(quizRepo, studentRepo, attemptRepo, a.quizzes, a.auth, cache.NewEventQueue(rdb), log)
	a.rankings = service.NewRankingService(attemptRepo, quizRepo, a.quizzes, attempts, cache.NewImageCache(rdb), cfg.LeaderboardImageRows, log)
	return a, nil
}

func (a *app) Close() {
	_ = a.rdb.Close()
	a.pool.Close()
}

// withApp wraps a subcommand body with connection setup and teardown.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quizctl",
		Short:         "Administrative tasks for the ClassQuiz backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCreateTeacherCmd(), newResetPasswordCmd(), newSeedCmd(), newRankCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
