// Package manager schedules chat-completion and embedding calls across a set of
// independently rate-limited model deployments. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Request/Result/Call, the Transport interface and the Handle future.
//   - errors.go: ErrorKind taxonomy, TaskError and helpers (IsAborted, IsModelNotFound).
//   - window.go: the per-deployment rate window log.
//   - worker.go: per-deployment admission (tryAdmit) and settle bookkeeping.
//   - timeout.go: token-proportional deadlines and the cancellation timer.
//   - queue_admission.go: Submit, the head-of-line drain loop, Abort and retry.
//   - dispatch.go: running an admitted call and classifying its outcome.
//   - status_report.go: Status reporting helpers.
//   - unload.go: graceful Close.
//   - events.go, eventpub_*.go: lifecycle event publishing (noop, memory, redis).
//   - metrics.go: Prometheus collectors.
//
// Admission is decided by one drain loop serialized under the Manager's lock;
// each worker guards its own window log and in-flight set with a lock scoped
// to that worker. Network calls run in their own goroutines and never hold
// either lock.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (New/NewWithConfig, Submit, Abort, Status, Close).
package manager
