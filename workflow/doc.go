// Package workflow exposes a pipeline of stages as a single duplex stream.
//
// An Adapter is built from an Initializer. On the first write the
// initializer receives the adapter's Source, chains whatever stages it
// needs on top of it, and returns the last one:
//
//	a := workflow.New(func(src *workflow.Source, _ any, _ string) streamflow.Terminal {
//	    return flow.Pipeline(src,
//	        flow.NewMap("parse", parse, 1),
//	        flow.NewFilter("valid", valid, 1),
//	    )
//	})
//
// The adapter then behaves like any other flow: write to it with Write or
// In, read from it with Read or Out, and tear it down with Close.
//
// # Backpressure
//
// Only one chunk is in flight at a time. A write is acknowledged when the
// first stage has taken the chunk, not when it is buffered, and the next
// chunk is handed over only while the read side is below its high-water
// mark or has asked for data.
//
// # Teardown
//
// Destroy never releases the adapter while the pipeline still holds data:
// it ends the input first, then waits for the last stage to finish and for
// its output to be forwarded. Pipeline errors are surfaced on Errors but do
// not short-circuit this sequence.
//
// # Limitations
//
// The initializer must build the pipeline synchronously. A terminal that
// implements streamflow.Deferred is rejected with a configuration error.
package workflow
