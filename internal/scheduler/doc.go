// Package scheduler запускает проекты по cron-расписанию.
//
// Структура:
//   - cron.go      — разбор cron-выражений и вычисление следующего запуска
//   - scheduler.go — Periodic: цикл тиков с пропуском, пока run активен
//
// Использование:
//
//	periodic, err := scheduler.NewPeriodic(scheduler.Config{
//	    Expr: "*/15 * * * *",
//	    Run: func(ctx context.Context) error {
//	        return orch.StartProject(ctx, project)
//	    },
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return periodic.Run(ctx)
package scheduler
