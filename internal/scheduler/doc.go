// Package scheduler decides in which groups the operations of a workflow run.
//
// A scheduler streams waves: slices of operations whose dependencies all
// belong to earlier waves. The workflow materializes one wave at a time and
// stops consuming as soon as an operation fails.
//
//   - Sequential emits one operation per wave, in registration order. This
//     is the default and matches the order a user reads in their code.
//   - Layered emits every operation whose dependencies are satisfied at once,
//     so independent operations can run concurrently.
//
// Streaming stops when the context is cancelled, so a consumer that bails
// out early must cancel it.
package scheduler
