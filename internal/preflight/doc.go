// Package preflight checks that the environment can run mailsearch: the
// data directory is writable with enough free space, the Maildir is laid
// out as expected, the store opens and the embedding provider is usable.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Maildir: root})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
