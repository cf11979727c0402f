/*
Package workflow implements the orchestration engine that drives DAO proposal
evaluation runs: a supervisor router decides which analysis step to run next,
independent steps fan out concurrently, and their partial updates are merged
into one shared state through per-slot reducers.

# Core types

  - Snapshot / Update      — read-only state view and proposed partial update
  - SlotPolicy             — SetOnce, AppendUnique, MergeShallow, PassThrough,
    LogicalOr, Sum merge policies
  - Router / Decision      — pure routing function returning terminal, one
    step, or a parallel set
  - Builder / Definition   — RegisterSlot / RegisterStep / WithRouter, with
    construction-time validation
  - Executor               — the Routing → Dispatching → Merging loop

# Guarantees

Steps never mutate state directly; reducers are applied only after the join
point of a dispatched set, so state needs no locking during execution. A
failing, panicking, or timed-out step is captured into the errors slot and
its primary slot receives the registered default, so the run degrades rather
than stalls. The halt guard caps total router invocations and per-step
invocations, self-healing stuck slots that declare a default and otherwise
forcing termination with a recorded flag. Only configuration mistakes
(unregistered slots, unknown step names, empty decisions) escape Run as
errors.
*/
package workflow
