// Package stores keeps the run history ledger in SQLite.
//
// Every suite run is stored with its target connection and final status,
// and each executed unit is appended in queue order. HistoryRecorder plugs
// the ledger into the orchestrator as an engine.Recorder.
package stores
