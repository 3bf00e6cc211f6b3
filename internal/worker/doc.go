// Package worker выполняет отдельные flows на платформе репликации.
//
// # Обзор
//
// FlowExecutor отвечает за один flow от сохранения до завершения:
//
//  1. Save — сохраняет определение пайплайна на платформе
//  2. Start — запускает задачу
//  3. Каждые PollInterval (1s) опрашивает статус и milestones
//  4. Выводит события (engine.DeriveEvents) и передаёт их в EventSink
//
// Планировщик проекта вызывает Execute из пула воркеров и получает
// итог в виде Result.
//
//	exec := worker.New(worker.Config{
//	    Client: platformClient,
//	    Logger: logger,
//	})
//
//	result := exec.Execute(ctx, flow, scheduler)
//	if !result.Succeeded() {
//	    log.Println(result.Err)
//	}
//
// # Завершение
//
//   - complete → успех
//   - error, stop, schedule_failed → ErrFlowFailed, событие {flow}.end не выдаётся
//   - MaxMalformedPolls ошибок опроса подряд → ErrMalformedLimit
//   - MaxEditPolls опросов в статусе edit подряд → ErrFlowStuck
//   - отмена ctx → ctx.Err()
//
// Счётчики сбрасываются первым нормальным опросом. Ошибка одного flow
// не влияет на остальные: воркер только сообщает Result.
package worker
