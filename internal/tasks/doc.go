// package tasks orchestrates the end-to-end playlist generation pipeline.
//
// [Assembler] drives one run: for each requested event it resolves the event,
// resolves every performed song to a catalog track (consulting the match
// cache first), assembles an ordered, deduplicated plan, and materializes it
// through the playlist sink. Events are isolated from each other; one failure
// is recorded in the [RunSummary] and the batch continues.
package tasks
