// Package watcher turns vault file system activity into document change
// events and provides the per-key Debouncer used to coalesce bursts of
// modifications.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Usage:
//
//	s, _ := scanner.New(scanner.Options{Root: "/path/to/vault"})
//	w, err := watcher.NewHybridWatcher(s, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx)
//	for event := range w.Events() {
//	    switch event.Operation {
//	    case watcher.OpCreate, watcher.OpModify:
//	        // Queue the document
//	    case watcher.OpDelete:
//	        // Drop it from the index
//	    case watcher.OpRename:
//	        // Drop event.OldKey, queue event.Key
//	    }
//	}
package watcher
