/*
Package metrics provides the Prometheus implementation of the workflow
Observer: run counts and durations, router decisions, per-step outcomes, and
halt-guard self-heals.

The Collector registers its vectors through promauto under a configurable
namespace, so each process (or test) gets an isolated metric family set by
choosing a distinct namespace.
*/
package metrics
