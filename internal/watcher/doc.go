// Package watcher re-evaluates patcher status when something changes.
//
// Two triggers feed it: file system events on the shim file (via fsnotify on
// its directory) and a poll ticker for state that emits no file events, the
// IFEO registry values and the activity atom. Each trigger runs Evaluate and
// the callback fires only when the derived status differs from the last one.
//
// Example usage:
//
//	w, err := watcher.New(manager, manager.Image().Path(), watcher.Options{
//		Interval: 5 * time.Second,
//		OnChange: func(c watcher.Change) { render(c.Status) },
//	})
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
package watcher
