/*
Package evaluation wires the orchestration engine to the DAO proposal
evaluation workflow: a core mission-alignment analysis, a parallel fan-out of
historical, financial, and social analyses, and a final reasoning pass that
aggregates the scores into an approve/reject decision.

The scoring content itself sits behind the Analyzer interface; the package
ships a deterministic HeuristicAnalyzer for local use and tests, and a
RateLimitedAnalyzer wrapper for API-backed implementations. Per-step token
usage is recorded into the token_usage slot via a tiktoken counter.
*/
package evaluation
