// Package pipeline runs the per-seed work of a paramcrawl invocation.
//
// A Pipeline executes an ordered list of Steps against a Job, one Job per
// seed: validate the seed, crawl it, and optionally save the result to the
// history database. BatchProcessor runs one pipeline per seed with bounded
// concurrency and returns the jobs in seed order.
package pipeline
