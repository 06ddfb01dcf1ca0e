// Package engine runs suites of shell transcripts against one remote host.
//
// # Overview
//
// A run has exactly one Connection (host, port, user, identity, tags). Units
// are queued on an Orchestrator in registration order and executed by
// RunSuite:
//
//  1. Queue - TranscriptUnit values run as given; DeferredUnit values are
//     built against the Connection when the run reaches them
//  2. Filter - UnitOptions.Eligible compares the run tags with the unit tags
//  3. Execute - the Executor ships the transcript and reports an Outcome
//  4. Record - results go to the Report, metrics, the trace and an optional
//     Recorder
//
// # Failures
//
// Every failure is an *EngineError with an ErrorClass. Environmental
// failures (unreachable host, non-zero remote exit, declined preview) are
// recorded per unit and the run continues unless WithStopOnFailure is set.
// A unit that fails to build aborts the run, and a cancelled context marks
// the remaining units cancelled.
//
// # Usage Example
//
//	orch := engine.New(conn, executor, engine.WithLogger(logger))
//	orch.Register(engine.UnitOptions{Name: "web", Tags: []string{"web"}},
//	    func(conn engine.Connection, s *script.Script) error {
//	        s.Install("nginx").Service("nginx", "restart")
//	        return nil
//	    })
//	orch.Restart()
//
//	report, err := orch.RunSuite(ctx)
//	if err != nil {
//	    return err
//	}
//	if !report.Succeeded() {
//	    os.Exit(1)
//	}
package engine
