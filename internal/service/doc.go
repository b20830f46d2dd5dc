// Package service implements execution of volatility tasks and publication
// of their results.
//
// Runner is a thin, opinionated wrapper around os/exec and the Executor of
// volatility tasks:
//   - starts the process, one at a time
//   - captures stdout
//   - optionally captures stderr (extra goroutine), Execute sends it to
//     the result log trail
//   - kills the process after a timeout
//
// Service runs one task per configured module against a single evidence,
// with a bounded parallelism. Every task has own Runner, Result and output
// file, so nothing is shared between them. Once all tasks are closed, the
// results are described as a CycloneDX BOM and handed to the uploaders.
//
// Data flow:
//
//	Service              Task{module}            Runner
//	   |                     |                      |
//	   | Run() ------------->| Command()            |
//	   |                     | Execute() ---------->| os/exec.Start + Wait
//	   |                     |<----- exit code -----|
//	   |                     | Finalize() + Apply() |
//	   |<----- Result -------|                      |
//	   | BOM() -> uploaders                         |
package service
